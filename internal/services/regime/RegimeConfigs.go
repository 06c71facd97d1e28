package regime

import (
	"fmt"
	"sort"
	"strings"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/validation"
)

type RegimeConfig struct {
	BBWidthThreshold  float64 `json:"bb_width_threshold" yaml:"bb_width_threshold" validate:"gt=0"`
	ATRRatioThreshold float64 `json:"atr_ratio_threshold" yaml:"atr_ratio_threshold" validate:"gt=0"`
	MinBBWidth        float64 `json:"min_bb_width" yaml:"min_bb_width" validate:"gte=0"`
}

// Validate enforces floor < ceiling along with the tag rules.
func (c RegimeConfig) Validate() error {
	if c.MinBBWidth >= c.BBWidthThreshold {
		return fmt.Errorf("%w: min_bb_width (%v) must be less than bb_width_threshold (%v)",
			models.ErrConfiguration, c.MinBBWidth, c.BBWidthThreshold)
	}
	return validation.Struct(c)
}

func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{BBWidthThreshold: 0.002, ATRRatioThreshold: 0.9, MinBBWidth: 0.0008}
}

type RegimeConfigs map[string]RegimeConfig

// DefaultRegimeConfigs returns a fresh copy of the per-pair thresholds.
func DefaultRegimeConfigs() RegimeConfigs {
	return RegimeConfigs{
		"EUR_USD": {BBWidthThreshold: 0.002, ATRRatioThreshold: 0.9, MinBBWidth: 0.0008},
		"GBP_USD": {BBWidthThreshold: 0.0025, ATRRatioThreshold: 0.95, MinBBWidth: 0.0010},
		"USD_JPY": {BBWidthThreshold: 0.002, ATRRatioThreshold: 0.9, MinBBWidth: 0.0006},
		"GBP_JPY": {BBWidthThreshold: 0.003, ATRRatioThreshold: 1.0, MinBBWidth: 0.0012},
	}
}

func (r RegimeConfigs) Copy() RegimeConfigs {
	out := make(RegimeConfigs, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r RegimeConfigs) Lookup(pair string) (RegimeConfig, error) {
	cfg, ok := r[pair]
	if !ok {
		pairs := make([]string, 0, len(r))
		for k := range r {
			pairs = append(pairs, k)
		}
		sort.Strings(pairs)
		return RegimeConfig{}, fmt.Errorf("%w: no regime config for pair %q, available: %s",
			models.ErrConfiguration, pair, strings.Join(pairs, ", "))
	}
	return cfg, nil
}
