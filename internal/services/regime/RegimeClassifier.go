package regime

import (
	"BandReversionBot/internal/models"
)

// trendingATRMultiple scales the ATR ratio ceiling into the trending trigger.
const trendingATRMultiple = 1.5

// RegimeClassifier labels bars as ranging, trending or neutral from indicator fields only.
type RegimeClassifier struct {
	cfg RegimeConfig
}

func NewRegimeClassifier(cfg RegimeConfig) (*RegimeClassifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RegimeClassifier{cfg: cfg}, nil
}

func (c *RegimeClassifier) Config() RegimeConfig {
	return c.cfg
}

// Classify returns a copy with the regime field set on every bar.
// Comparisons against NaN are false, so warm-up bars never qualify as ranging.
func (c *RegimeClassifier) Classify(s models.Series) (models.Series, error) {
	if err := s.Require(models.FieldBands | models.FieldVolatility | models.FieldTrend); err != nil {
		return models.Series{}, err
	}

	out := s.Clone()
	bars := out.Bars
	for i := range bars {
		bars[i].Regime = c.classifyBar(bars, i)
	}
	out.Fields |= models.FieldRegime
	return out, nil
}

func (c *RegimeClassifier) classifyBar(bars []models.Bar, i int) models.Regime {
	b := bars[i]

	// ema_cross changed within the last 2 bars
	crossChanged := i >= 1 && b.EMACross != bars[i-1].EMACross
	if crossChanged || b.ATRRatio > c.cfg.ATRRatioThreshold*trendingATRMultiple {
		return models.RegimeTrending
	}

	// ema_cross constant over the last 3 bars
	crossStable := i >= 2 && b.EMACross == bars[i-1].EMACross && b.EMACross == bars[i-2].EMACross
	if crossStable &&
		b.BBWidth > c.cfg.MinBBWidth &&
		b.BBWidth < c.cfg.BBWidthThreshold &&
		b.ATRRatio < c.cfg.ATRRatioThreshold {
		return models.RegimeRanging
	}

	return models.RegimeNeutral
}
