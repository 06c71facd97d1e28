package regime

import (
	"fmt"

	"BandReversionBot/internal/models"

	"github.com/rs/zerolog"
)

// Engine tags sessions and classifies regime with per-pair thresholds.
type Engine struct {
	configs  RegimeConfigs
	sessions *SessionFilter
	log      zerolog.Logger
}

func NewEngine(configs RegimeConfigs, log zerolog.Logger) (*Engine, error) {
	if configs == nil {
		configs = DefaultRegimeConfigs()
	}
	for pair, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("regime config for %s: %w", pair, err)
		}
	}

	sessions, err := NewSessionFilter()
	if err != nil {
		return nil, err
	}

	return &Engine{
		configs:  configs.Copy(),
		sessions: sessions,
		log:      log,
	}, nil
}

func (e *Engine) Config(pair string) (RegimeConfig, error) {
	return e.configs.Lookup(pair)
}

func (e *Engine) Run(pair, timeframe string, s models.Series) (models.Series, error) {
	cfg, err := e.configs.Lookup(pair)
	if err != nil {
		return models.Series{}, err
	}
	e.log.Info().Str("pair", pair).Str("timeframe", timeframe).Int("rows", s.Len()).Msg("Classifying regime")

	tagged, err := e.sessions.TagSessions(s)
	if err != nil {
		return models.Series{}, err
	}
	return e.Classify(cfg, tagged)
}

// Sessions tags sessions only; the optimizer does this once per dataset.
func (e *Engine) Sessions(s models.Series) (models.Series, error) {
	return e.sessions.TagSessions(s)
}

// Classify labels regime with an explicit threshold set.
func (e *Engine) Classify(cfg RegimeConfig, s models.Series) (models.Series, error) {
	classifier, err := NewRegimeClassifier(cfg)
	if err != nil {
		return models.Series{}, err
	}
	return classifier.Classify(s)
}
