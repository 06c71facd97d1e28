package validation

import (
	"errors"
	"strings"
	"testing"

	"BandReversionBot/internal/models"
)

type sample struct {
	Balance float64 `default:"10000" validate:"gt=0"`
	Risk    float64 `default:"0.01" validate:"gt=0,lte=1"`
	Fast    int     `default:"8" validate:"gt=0"`
	Slow    int     `default:"21" validate:"gtfield=Fast"`
}

func TestDefaultsThenStruct(t *testing.T) {
	var s sample
	if err := Defaults(&s); err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if s.Balance != 10000 || s.Risk != 0.01 || s.Fast != 8 || s.Slow != 21 {
		t.Fatalf("defaults not applied: %+v", s)
	}
	if err := Struct(s); err != nil {
		t.Fatalf("Struct: %v", err)
	}
}

func TestStructWrapsConfigurationError(t *testing.T) {
	err := Struct(sample{Balance: -1, Risk: 2, Fast: 8, Slow: 3})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	for _, want := range []string{"Balance", "Risk", "Slow"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
