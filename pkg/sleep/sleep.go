package sleep

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/lyralabs/lyra/pkg/clock"
	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

// Sleep phases.
const (
	PhaseAwake  = "awake"
	PhaseDrowsy = "drowsy"
	PhaseAsleep = "asleep"
)

const sleepFile = "sleep_state.json"

// State is the persisted sleep machine state. Transition stamps are ISO
// strings; epoch math goes through the clock service.
type State struct {
	Phase               string  `json:"phase"`
	SleepStart          string  `json:"sleep_start_time,omitempty"`
	SleepEnd            string  `json:"sleep_end_time,omitempty"`
	LastWake            string  `json:"last_wake_time,omitempty"`
	SleepQuality        float64 `json:"sleep_quality"`
	DreamCountTonight   int     `json:"dream_count_tonight"`
	LastDreamTime       string  `json:"last_dream_time,omitempty"`
	ConsecutiveNights   int     `json:"consecutive_sleep_nights"`
	TotalSleepHours     float64 `json:"total_sleep_hours"`
	LastSleepDreamCount int     `json:"last_sleep_dream_count"`
	LastActivity        int64   `json:"last_activity"`
	GraceUntil          int64   `json:"grace_until"`
}

// Engine is the sleep/dream state machine.
type Engine struct {
	store *store.Store
	clock *clock.Service
	cfg   config.SleepConfig
	cron  *gronx.Gronx

	mu      sync.Mutex
	state   State
	journal *Journal
}

func NewEngine(st *store.Store, clk *clock.Service, cfg config.SleepConfig) *Engine {
	e := &Engine{store: st, clock: clk, cfg: cfg, cron: gronx.New()}
	e.state = State{Phase: PhaseAwake, SleepQuality: 0.8}
	st.Load(sleepFile, &e.state)
	if e.state.Phase == "" {
		e.state.Phase = PhaseAwake
	}
	// Boot counts as a wake: without a wake stamp the awake-hours math
	// has no anchor.
	if e.state.LastWake == "" {
		e.state.LastWake = clk.NowISO()
		e.state.LastActivity = clk.Now()
	}
	e.journal = newJournal(st, clk)
	return e
}

// Phase returns the current sleep phase.
func (e *Engine) Phase() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase
}

// Asleep reports whether the engine is in the asleep phase.
func (e *Engine) Asleep() bool { return e.Phase() == PhaseAsleep }

// JustWoken reports whether the last wake was under the just-woken
// window; prompt assembly uses this for the groggy variant.
func (e *Engine) JustWoken() bool {
	e.mu.Lock()
	last := e.state.LastWake
	e.mu.Unlock()
	if last == "" {
		return false
	}
	ts, err := clock.ISOToEpoch(last)
	if err != nil {
		return false
	}
	return e.clock.HoursSince(ts) < e.cfg.JustWokenHours
}

// HoursAwake reports hours since the last wake, 0 while asleep.
func (e *Engine) HoursAwake() float64 {
	e.mu.Lock()
	phase, last := e.state.Phase, e.state.LastWake
	e.mu.Unlock()
	if phase == PhaseAsleep || last == "" {
		return 0
	}
	ts, err := clock.ISOToEpoch(last)
	if err != nil {
		return 0
	}
	return e.clock.HoursSince(ts)
}

// SleepDurationHours reports how long the current sleep has lasted.
func (e *Engine) SleepDurationHours() float64 {
	e.mu.Lock()
	phase, start := e.state.Phase, e.state.SleepStart
	e.mu.Unlock()
	if phase != PhaseAsleep || start == "" {
		return 0
	}
	ts, err := clock.ISOToEpoch(start)
	if err != nil {
		return 0
	}
	h := e.clock.HoursSince(ts)
	if h < 0 || h > 168 {
		return 0
	}
	return h
}

// RecordActivity notes a user turn: it refreshes the grace window,
// wakes a sleeping engine, and clears drowsiness once the just-woken
// window has passed.
func (e *Engine) RecordActivity() {
	now := e.clock.Now()

	e.mu.Lock()
	e.state.LastActivity = now
	e.state.GraceUntil = now + int64(e.cfg.GraceMinutes)*60
	wasAsleep := e.state.Phase == PhaseAsleep
	e.mu.Unlock()

	if wasAsleep {
		e.WakeUp("user activity")
		return
	}

	e.mu.Lock()
	if e.state.Phase == PhaseDrowsy && !e.justWokenLocked(now) && !e.overWakeLimitLocked(now) {
		e.state.Phase = PhaseAwake
	}
	e.mu.Unlock()
	e.persist()
}

// Tick advances the state machine; called periodically.
func (e *Engine) Tick() {
	now := e.clock.Now()

	e.mu.Lock()
	phase := e.state.Phase
	idleMinutes := (now - e.state.LastActivity) / 60
	inGrace := now < e.state.GraceUntil
	e.mu.Unlock()

	switch phase {
	case PhaseAwake:
		e.mu.Lock()
		if e.overWakeLimitLocked(now) || e.justWokenLocked(now) {
			e.state.Phase = PhaseDrowsy
			logger.DebugCF("sleep", "drifting toward drowsy", map[string]interface{}{
				"hours_awake": e.hoursAwakeLocked(now),
			})
		}
		e.mu.Unlock()
		e.persist()
	case PhaseDrowsy:
		if !inGrace && idleMinutes > int64(e.cfg.IdleThresholdMin) {
			e.EnterSleep()
		} else {
			e.mu.Lock()
			if !e.justWokenLocked(now) && !e.overWakeLimitLocked(now) {
				e.state.Phase = PhaseAwake
			}
			e.mu.Unlock()
			e.persist()
		}
	case PhaseAsleep:
		if e.scheduledWakeDue() || e.naturalWakeDue() {
			e.WakeUp("scheduled wake")
		}
	}
}

// EnterSleep transitions to asleep and opens a fresh dream night.
func (e *Engine) EnterSleep() {
	now := e.clock.Now()

	e.mu.Lock()
	if e.state.Phase == PhaseAsleep {
		e.mu.Unlock()
		return
	}
	e.state.Phase = PhaseAsleep
	e.state.SleepStart = clock.EpochToISO(now)
	e.state.DreamCountTonight = 0
	e.mu.Unlock()

	e.persist()
	logger.InfoCF("sleep", "entering sleep", map[string]interface{}{
		"at": e.clock.FormatLocal(now),
	})
}

// WakeUp transitions to awake (through the just-woken drowsy window),
// folding the finished sleep into quality and streak stats.
func (e *Engine) WakeUp(reason string) {
	now := e.clock.Now()

	e.mu.Lock()
	if e.state.Phase != PhaseAsleep {
		e.mu.Unlock()
		return
	}
	iso := clock.EpochToISO(now)
	e.state.Phase = PhaseDrowsy // just-woken window
	e.state.SleepEnd = iso
	e.state.LastWake = iso
	e.state.LastSleepDreamCount = e.state.DreamCountTonight

	if start, err := clock.ISOToEpoch(e.state.SleepStart); err == nil && start > 0 {
		hours := float64(now-start) / 3600
		e.state.TotalSleepHours += hours
		e.state.SleepQuality = sleepQuality(hours, e.state.DreamCountTonight)
		if !e.clock.SameLocalDay(start, now) {
			e.state.ConsecutiveNights++
		}
	}
	dreams := e.state.DreamCountTonight
	e.state.DreamCountTonight = 0
	e.mu.Unlock()

	e.persist()
	logger.InfoCF("sleep", "waking up", map[string]interface{}{
		"reason": reason,
		"dreams": dreams,
	})
}

func (e *Engine) scheduledWakeDue() bool {
	if e.cfg.ScheduledWakeCron == "" {
		return false
	}
	due, err := e.cron.IsDue(e.cfg.ScheduledWakeCron, time.Unix(e.clock.Now(), 0))
	if err != nil {
		logger.WarnCF("sleep", "bad wake cron", map[string]interface{}{
			"cron":  e.cfg.ScheduledWakeCron,
			"error": err.Error(),
		})
		return false
	}
	return due
}

// naturalWakeDue covers oversleep and late-morning recovery: nobody
// sleeps past twelve hours, and six hours is enough once mid-morning
// local time arrives.
func (e *Engine) naturalWakeDue() bool {
	duration := e.SleepDurationHours()
	if duration >= 12 {
		return true
	}
	hour := e.clock.LocalHour(e.clock.Now())
	if hour >= 10 && duration >= 6 {
		return true
	}
	if hour >= 14 && duration >= 4 {
		return true
	}
	return false
}

// Status renders a one-line dashboard summary.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase == PhaseAsleep {
		return statusSleeping(e.state.SleepStart, e.state.DreamCountTonight)
	}
	return statusAwake(e.state.ConsecutiveNights, e.state.TotalSleepHours)
}

func (e *Engine) Journal() *Journal { return e.journal }

func (e *Engine) justWokenLocked(now int64) bool {
	if e.state.LastWake == "" {
		return false
	}
	ts, err := clock.ISOToEpoch(e.state.LastWake)
	if err != nil {
		return false
	}
	return float64(now-ts)/3600 < e.cfg.JustWokenHours
}

func (e *Engine) hoursAwakeLocked(now int64) float64 {
	if e.state.LastWake == "" {
		return 0
	}
	ts, err := clock.ISOToEpoch(e.state.LastWake)
	if err != nil {
		return 0
	}
	return float64(now-ts) / 3600
}

func (e *Engine) overWakeLimitLocked(now int64) bool {
	h := e.hoursAwakeLocked(now)
	return h > 0 && h > e.cfg.WakeLimitHours
}

// sleepQuality maps duration to quality: 6-8 hours is optimal, dreams
// add a little on top.
func sleepQuality(hours float64, dreams int) float64 {
	var q float64
	switch {
	case hours < 6:
		q = (hours / 6) * 0.8
	case hours > 8:
		q = 0.9 - (hours-8)*0.1
	default:
		q = 0.9 + float64(dreams)*0.02
	}
	if q < 0.2 {
		return 0.2
	}
	if q > 1 {
		return 1
	}
	return q
}

// SnapshotKey and the capture/restore pair enroll the sleep machine in
// the consciousness snapshotter.
func (e *Engine) SnapshotKey() string { return "sleep" }

func (e *Engine) CaptureSnapshot() interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) RestoreSnapshot(data json.RawMessage) error {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Phase == "" {
		return nil
	}
	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	return nil
}

func (e *Engine) persist() {
	e.mu.Lock()
	snap := e.state
	e.mu.Unlock()
	if err := e.store.Save(sleepFile, &snap); err != nil {
		logger.WarnCF("sleep", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

// DreamCountTonight reports dreams generated during the current sleep.
func (e *Engine) DreamCountTonight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.DreamCountTonight
}

func (e *Engine) noteDream(iso string) {
	e.mu.Lock()
	e.state.DreamCountTonight++
	e.state.LastDreamTime = iso
	e.mu.Unlock()
	e.persist()
}

func (e *Engine) dreamTiming() (phase, sleepStart, lastDream string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase, e.state.SleepStart, e.state.LastDreamTime
}
