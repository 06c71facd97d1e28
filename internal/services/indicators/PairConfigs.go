package indicators

import (
	"fmt"
	"sort"
	"strings"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/validation"
)

// PairConfig holds the indicator parameters for one instrument.
type PairConfig struct {
	BBPeriod  int     `json:"bb_period" yaml:"bb_period" validate:"gte=2"`
	BBStdDev  float64 `json:"bb_std_dev" yaml:"bb_std_dev" validate:"gt=0"`
	ATRPeriod int     `json:"atr_period" yaml:"atr_period" validate:"gte=1"`
	EMAFast   int     `json:"ema_fast" yaml:"ema_fast" validate:"gte=1"`
	EMASlow   int     `json:"ema_slow" yaml:"ema_slow" validate:"gtfield=EMAFast"`
}

func (c PairConfig) Validate() error {
	return validation.Struct(c)
}

// PairConfigs maps instrument name to its indicator parameters.
type PairConfigs map[string]PairConfig

// DefaultPairConfigs returns a fresh copy of the default table.
func DefaultPairConfigs() PairConfigs {
	return PairConfigs{
		"EUR_USD": {BBPeriod: 20, BBStdDev: 2.0, ATRPeriod: 14, EMAFast: 8, EMASlow: 21},
		"GBP_USD": {BBPeriod: 20, BBStdDev: 2.0, ATRPeriod: 14, EMAFast: 8, EMASlow: 21},
		"USD_JPY": {BBPeriod: 20, BBStdDev: 2.0, ATRPeriod: 14, EMAFast: 8, EMASlow: 21},
		"GBP_JPY": {BBPeriod: 20, BBStdDev: 2.5, ATRPeriod: 14, EMAFast: 8, EMASlow: 21}, // wider bands for the more volatile cross
	}
}

func (p PairConfigs) Copy() PairConfigs {
	out := make(PairConfigs, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Lookup fails with a configuration error for an unconfigured pair.
func (p PairConfigs) Lookup(pair string) (PairConfig, error) {
	cfg, ok := p[pair]
	if !ok {
		return PairConfig{}, fmt.Errorf("%w: no indicator config for pair %q, available: %s",
			models.ErrConfiguration, pair, strings.Join(p.Pairs(), ", "))
	}
	return cfg, nil
}

func (p PairConfigs) Pairs() []string {
	pairs := make([]string, 0, len(p))
	for k := range p {
		pairs = append(pairs, k)
	}
	sort.Strings(pairs)
	return pairs
}
