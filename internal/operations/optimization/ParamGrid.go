package optimization

import (
	"fmt"
	"os"

	"BandReversionBot/internal/models"
	"BandReversionBot/internal/services/indicators"
	"BandReversionBot/internal/services/regime"

	"gopkg.in/yaml.v3"
)

// MaxCombinations caps a pair's grid so a search has a predictable worst case.
const MaxCombinations = 500

// ParamSet is one point of the grid. The json keys are the persisted best_params keys.
type ParamSet struct {
	BBPeriod          int     `json:"bb_period" yaml:"bb_period"`
	BBStdDev          float64 `json:"bb_std_dev" yaml:"bb_std_dev"`
	ATRPeriod         int     `json:"atr_period" yaml:"atr_period"`
	BBWidthThreshold  float64 `json:"bb_width_threshold" yaml:"bb_width_threshold"`
	MinBBWidth        float64 `json:"min_bb_width" yaml:"min_bb_width"`
	ATRRatioThreshold float64 `json:"atr_ratio_threshold" yaml:"atr_ratio_threshold"`
	EMAFast           int     `json:"ema_fast" yaml:"ema_fast"`
	EMASlow           int     `json:"ema_slow" yaml:"ema_slow"`
}

func (p ParamSet) IsZero() bool {
	return p == ParamSet{}
}

func (p ParamSet) RegimeConfig() regime.RegimeConfig {
	return regime.RegimeConfig{
		BBWidthThreshold:  p.BBWidthThreshold,
		ATRRatioThreshold: p.ATRRatioThreshold,
		MinBBWidth:        p.MinBBWidth,
	}
}

func (p ParamSet) PairConfig() indicators.PairConfig {
	return indicators.PairConfig{
		BBPeriod:  p.BBPeriod,
		BBStdDev:  p.BBStdDev,
		ATRPeriod: p.ATRPeriod,
		EMAFast:   p.EMAFast,
		EMASlow:   p.EMASlow,
	}
}

// Grid lists candidate values per searched dimension.
type Grid struct {
	BBPeriod          []int     `yaml:"bb_period"`
	BBStdDev          []float64 `yaml:"bb_std_dev"`
	ATRPeriod         []int     `yaml:"atr_period"`
	BBWidthThreshold  []float64 `yaml:"bb_width_threshold"`
	MinBBWidth        []float64 `yaml:"min_bb_width"`
	ATRRatioThreshold []float64 `yaml:"atr_ratio_threshold"`
}

// Size is the number of combinations the grid expands to.
func (g Grid) Size() int {
	return len(g.BBPeriod) * len(g.BBStdDev) * len(g.ATRPeriod) *
		len(g.BBWidthThreshold) * len(g.MinBBWidth) * len(g.ATRRatioThreshold)
}

// merge replaces every dimension that the override lists.
func (g Grid) merge(o Grid) Grid {
	if len(o.BBPeriod) > 0 {
		g.BBPeriod = o.BBPeriod
	}
	if len(o.BBStdDev) > 0 {
		g.BBStdDev = o.BBStdDev
	}
	if len(o.ATRPeriod) > 0 {
		g.ATRPeriod = o.ATRPeriod
	}
	if len(o.BBWidthThreshold) > 0 {
		g.BBWidthThreshold = o.BBWidthThreshold
	}
	if len(o.MinBBWidth) > 0 {
		g.MinBBWidth = o.MinBBWidth
	}
	if len(o.ATRRatioThreshold) > 0 {
		g.ATRRatioThreshold = o.ATRRatioThreshold
	}
	return g
}

// GridSet is the full search definition: a base grid, per-pair overrides and the
// trend parameters that are held fixed.
type GridSet struct {
	Base      Grid            `yaml:"grid"`
	Overrides map[string]Grid `yaml:"overrides"`
	EMAFast   int             `yaml:"ema_fast"`
	EMASlow   int             `yaml:"ema_slow"`
}

// jpyFloors are the band-width floors searched on yen pairs.
var jpyFloors = []float64{0.0004, 0.0006, 0.0009}

func DefaultGridSet() GridSet {
	return GridSet{
		Base: Grid{
			BBPeriod:          []int{15, 20, 25},
			BBStdDev:          []float64{1.8, 2.0, 2.2},
			ATRPeriod:         []int{14},
			BBWidthThreshold:  []float64{0.0015, 0.002, 0.0025},
			MinBBWidth:        []float64{0.0005, 0.0008, 0.0012},
			ATRRatioThreshold: []float64{0.8, 0.9, 1.0},
		},
		Overrides: map[string]Grid{
			"GBP_JPY": {BBStdDev: []float64{2.0, 2.5, 3.0}, MinBBWidth: jpyFloors},
			"USD_JPY": {MinBBWidth: jpyFloors},
		},
		EMAFast: 8,
		EMASlow: 21,
	}
}

// LoadGrid reads a GridSet from YAML. Fields left out of the file keep their defaults.
func LoadGrid(path string) (GridSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GridSet{}, fmt.Errorf("read grid file: %w", err)
	}

	gs := DefaultGridSet()
	var file GridSet
	if err := yaml.Unmarshal(data, &file); err != nil {
		return GridSet{}, fmt.Errorf("%w: parse grid file %s: %v", models.ErrConfiguration, path, err)
	}
	gs.Base = gs.Base.merge(file.Base)
	if file.Overrides != nil {
		gs.Overrides = file.Overrides
	}
	if file.EMAFast > 0 {
		gs.EMAFast = file.EMAFast
	}
	if file.EMASlow > 0 {
		gs.EMASlow = file.EMASlow
	}
	if gs.EMASlow <= gs.EMAFast {
		return GridSet{}, fmt.Errorf("%w: grid ema_slow (%d) must exceed ema_fast (%d)",
			models.ErrConfiguration, gs.EMASlow, gs.EMAFast)
	}
	return gs, nil
}

func (gs GridSet) ForPair(pair string) Grid {
	g := gs.Base
	if o, ok := gs.Overrides[pair]; ok {
		g = g.merge(o)
	}
	return g
}

// Combinations expands a pair's grid in lexicographic order, the last dimension
// varying fastest.
func (gs GridSet) Combinations(pair string) ([]ParamSet, error) {
	g := gs.ForPair(pair)
	n := g.Size()
	if n == 0 {
		return nil, fmt.Errorf("%w: no parameter grid defined for %s", models.ErrConfiguration, pair)
	}
	if n > MaxCombinations {
		return nil, fmt.Errorf("%w: grid for %s has %d combinations, exceeding cap of %d",
			models.ErrConfiguration, pair, n, MaxCombinations)
	}

	combos := make([]ParamSet, 0, n)
	for _, period := range g.BBPeriod {
		for _, std := range g.BBStdDev {
			for _, atr := range g.ATRPeriod {
				for _, width := range g.BBWidthThreshold {
					for _, floor := range g.MinBBWidth {
						for _, ratio := range g.ATRRatioThreshold {
							combos = append(combos, ParamSet{
								BBPeriod:          period,
								BBStdDev:          std,
								ATRPeriod:         atr,
								BBWidthThreshold:  width,
								MinBBWidth:        floor,
								ATRRatioThreshold: ratio,
								EMAFast:           gs.EMAFast,
								EMASlow:           gs.EMASlow,
							})
						}
					}
				}
			}
		}
	}
	return combos, nil
}
