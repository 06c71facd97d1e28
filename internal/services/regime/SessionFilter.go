package regime

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"BandReversionBot/internal/models"
)

// Session hours are local to the US Eastern zone, half-open [start, end).
const (
	asianStart   = 19
	asianEnd     = 2 // wraps midnight
	londonStart  = 3
	londonEnd    = 12
	overlapStart = 8
	overlapEnd   = 11
	newYorkStart = 12
	newYorkEnd   = 17
)

// SessionFilter tags bars with their trading session and tradeability.
type SessionFilter struct {
	loc *time.Location
}

func NewSessionFilter() (*SessionFilter, error) {
	loc, err := time.LoadLocation("America/Montreal")
	if err != nil {
		loc, err = time.LoadLocation("America/New_York")
	}
	if err != nil {
		return nil, fmt.Errorf("load session timezone: %w", err)
	}
	return &SessionFilter{loc: loc}, nil
}

// SessionAt returns the session label for a UTC instant.
func (f *SessionFilter) SessionAt(t time.Time) models.Session {
	return classifyHour(t.In(f.loc).Hour())
}

// TagSessions returns a copy with session and tradeable_session filled.
func (f *SessionFilter) TagSessions(s models.Series) (models.Series, error) {
	if err := s.Require(models.FieldOHLC); err != nil {
		return models.Series{}, err
	}

	out := s.Clone()
	for i := range out.Bars {
		session := f.SessionAt(out.Bars[i].Time)
		out.Bars[i].Session = session
		out.Bars[i].TradeableSession = IsTradeable(session)
	}
	out.Fields |= models.FieldSession
	return out, nil
}

// classifyHour applies the hour rules in order; a later match replaces an earlier one.
// London runs to 12:00 and so covers the overlap window.
func classifyHour(h int) models.Session {
	session := models.SessionOff
	if h >= asianStart || h < asianEnd {
		session = models.SessionAsian
	}
	if h >= londonStart && h < londonEnd {
		session = models.SessionLondon
	}
	if h >= newYorkStart && h < newYorkEnd {
		session = models.SessionNewYork
	}
	return session
}

// IsOverlapHour reports the London/New York overlap window. It is informational
// and never changes a bar's session label.
func IsOverlapHour(h int) bool {
	return h >= overlapStart && h < overlapEnd
}

func IsTradeable(s models.Session) bool {
	return s == models.SessionAsian || s == models.SessionLondon
}
