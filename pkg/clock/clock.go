package clock

import (
	"fmt"
	"sync"
	"time"
)

// isoLayout is the canonical on-disk timestamp format. Every store writes
// timestamps either as epoch seconds or in this layout.
const isoLayout = "2006-01-02 15:04:05 UTC"

const localZone = "Europe/London"

// Service is the single time source for the runtime. Components never read
// the system clock directly; they hold a *Service. Within one handle, Now is
// guaranteed non-decreasing even if the wall clock steps backwards.
type Service struct {
	mu       sync.Mutex
	nowFn    func() time.Time
	lastUnix int64
	local    *time.Location
}

func New() *Service {
	return NewWithNow(time.Now)
}

// NewWithNow builds a service with an injectable wall-clock, for tests.
func NewWithNow(nowFn func() time.Time) *Service {
	loc, err := time.LoadLocation(localZone)
	if err != nil {
		loc = time.UTC
	}
	return &Service{nowFn: nowFn, local: loc}
}

// Now returns the current epoch seconds, monotonic non-decreasing.
func (s *Service) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn().Unix()
	if now < s.lastUnix {
		now = s.lastUnix
	}
	s.lastUnix = now
	return now
}

// NowMilli returns current epoch milliseconds for dashboard payloads.
func (s *Service) NowMilli() int64 {
	return s.nowFn().UnixMilli()
}

// NowISO returns the current time in the canonical ISO layout.
func (s *Service) NowISO() string {
	return EpochToISO(s.Now())
}

// HoursSince returns fractional hours elapsed since ts.
func (s *Service) HoursSince(ts int64) float64 {
	delta := s.Now() - ts
	if delta < 0 {
		delta = 0
	}
	return float64(delta) / 3600.0
}

// MinutesSince returns whole minutes elapsed since ts.
func (s *Service) MinutesSince(ts int64) int64 {
	delta := s.Now() - ts
	if delta < 0 {
		delta = 0
	}
	return delta / 60
}

// SameLocalDay reports whether both timestamps fall on the same calendar day
// in the fixed local zone.
func (s *Service) SameLocalDay(a, b int64) bool {
	ta := time.Unix(a, 0).In(s.local)
	tb := time.Unix(b, 0).In(s.local)
	ay, am, ad := ta.Date()
	by, bm, bd := tb.Date()
	return ay == by && am == bm && ad == bd
}

// LocalHour returns the hour of day (0-23) for ts in the fixed local zone.
func (s *Service) LocalHour(ts int64) int {
	return time.Unix(ts, 0).In(s.local).Hour()
}

// FormatLocal renders ts in the fixed local zone for dashboard display.
func (s *Service) FormatLocal(ts int64) string {
	return time.Unix(ts, 0).In(s.local).Format("2006-01-02 15:04:05 MST")
}

// FormatAge renders a short human age for ts ("Just now", "12m ago", ...).
func (s *Service) FormatAge(ts int64) string {
	hours := s.HoursSince(ts)
	switch {
	case hours < 1.0/60.0:
		return "Just now"
	case hours < 1.0:
		return fmt.Sprintf("%.0fm ago", hours*60)
	case hours < 24.0:
		return fmt.Sprintf("%.1fh ago", hours)
	default:
		return fmt.Sprintf("%.0fd ago", hours/24)
	}
}

// EpochToISO converts epoch seconds to the canonical ISO layout.
func EpochToISO(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(isoLayout)
}

// ISOToEpoch parses the canonical layout, falling back to RFC3339 and a bare
// naive datetime. EpochToISO then ISOToEpoch round-trips exactly.
func ISOToEpoch(iso string) (int64, error) {
	if t, err := time.Parse(isoLayout, iso); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.Parse(time.RFC3339, iso); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", iso); err == nil {
		return t.Unix(), nil
	}
	return 0, fmt.Errorf("parse datetime %q", iso)
}

// ValidTimestamp reports whether ts falls within a year of now on either
// side. Used to reject garbage anchors parsed out of old logs.
func (s *Service) ValidTimestamp(ts int64) bool {
	const year = 365 * 24 * 3600
	now := s.Now()
	return ts > now-year && ts < now+year
}
