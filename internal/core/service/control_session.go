package service

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/core/port"
	sm "github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

	"go.uber.org/zap"
)

const (
	minDurationMinutes = 1
	maxDurationMinutes = 1440

	defaultMaxPowerWatt uint32 = 24000
)

// ErrInvalidParameter rejects out-of-range power or duration before any
// register is touched.
var ErrInvalidParameter = errors.New("invalid control parameter")

// CommunicationError wraps a register client failure during a session
// transition.
type CommunicationError struct {
	Address uint16
	Err     error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("register write 0x%04X failed: %s", e.Address, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// SessionState is a point-in-time snapshot of the session.
type SessionState struct {
	Active              bool
	EndsAt              time.Time
	TargetPowerPermille int16
}

// SessionManager supervises a single remote-control session on one inverter.
//
// While a session is active the manager owns two timers: a periodic watchdog
// refresh that keeps the device from reverting to autonomous control, and a
// single-shot deadline that ends the session. Every transition (Start, Stop,
// deadline fire, refresh tick) runs under one lock, so register sequences
// never interleave and no refresh can fire after the session went idle.
type SessionManager struct {
	registers  port.RegisterClient
	telemetry  port.TelemetrySource
	indicators port.IndicatorSink
	clock      Clock
	logger     *zap.Logger

	maxPowerWatt uint32

	mu                  sync.Mutex
	active              bool
	endDeadline         time.Time
	targetPowerPermille int16
	watchdogTimer       Timer
	deadlineTimer       Timer
}

func NewSessionManager(registers port.RegisterClient, telemetry port.TelemetrySource,
	indicators port.IndicatorSink, maxPowerWatt uint32, logger *zap.Logger) *SessionManager {
	return NewSessionManagerWithClock(registers, telemetry, indicators, maxPowerWatt, SystemClock(), logger)
}

func NewSessionManagerWithClock(registers port.RegisterClient, telemetry port.TelemetrySource,
	indicators port.IndicatorSink, maxPowerWatt uint32, clock Clock, logger *zap.Logger) *SessionManager {
	if maxPowerWatt == 0 {
		maxPowerWatt = defaultMaxPowerWatt
	}
	return &SessionManager{
		registers:    registers,
		telemetry:    telemetry,
		indicators:   indicators,
		clock:        clock,
		logger:       logger,
		maxPowerWatt: maxPowerWatt,
	}
}

// Start opens a remote-control session: enables remote mode on the device,
// arms its watchdog, writes the power setpoint and schedules the automatic
// stop. A session already in progress is stopped first, so the device and
// the timers always reflect the new parameters only.
//
// Any write failure aborts the sequence, resets the device best-effort and
// is returned to the caller. The session is idle afterwards.
func (m *SessionManager) Start(powerWatts, durationMinutes int) error {
	if durationMinutes < minDurationMinutes || durationMinutes > maxDurationMinutes {
		return fmt.Errorf("%w: duration %d min out of range [%d, %d]",
			ErrInvalidParameter, durationMinutes, minDurationMinutes, maxDurationMinutes)
	}
	if powerWatts < -int(m.maxPowerWatt) || powerWatts > int(m.maxPowerWatt) {
		return fmt.Errorf("%w: power %d W out of range [-%d, %d]",
			ErrInvalidParameter, powerWatts, m.maxPowerWatt, m.maxPowerWatt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		m.logger.Info("control session already active, restarting with new parameters")
		m.resetLocked()
	}

	ratedPower := m.ratedPowerOrDefault()
	permille := powerToPermille(powerWatts, ratedPower)

	setup := []struct {
		address uint16
		value   uint16
	}{
		{sm.RegRemoteModeEnable, sm.RemoteModeEnabled},
		{sm.RegBatterySideControl, sm.BatterySideControlEnabled},
		{sm.RegPowerPriority, sm.PowerPriorityBattery},
		{sm.RegWatchdogTimeout, sm.WatchdogTimeoutSeconds},
		{sm.RegBatteryPowerSetpoint, uint16(permille)},
	}
	// the device firmware interprets these as a sequential mode-setup
	// protocol: order matters, no write may be skipped or reordered
	for _, w := range setup {
		if err := m.writeLocked(w.address, w.value); err != nil {
			m.logger.Error("control session setup failed, resetting device",
				zap.Uint16("address", w.address), zap.Error(err))
			m.resetLocked()
			return &CommunicationError{Address: w.address, Err: err}
		}
	}

	duration := time.Duration(durationMinutes) * time.Minute
	m.active = true
	m.endDeadline = m.clock.Now().Add(duration)
	m.targetPowerPermille = permille
	m.watchdogTimer = m.clock.AfterFunc(sm.WatchdogRefreshInterval, m.watchdogTick)
	m.deadlineTimer = m.clock.AfterFunc(duration, m.deadlineElapsed)

	m.notifyIndicatorsLocked(true, float64(powerWatts))

	m.logger.Info("control session started",
		zap.Int("power_watts", powerWatts),
		zap.Int("duration_minutes", durationMinutes),
		zap.Uint32("rated_power_watts", ratedPower),
		zap.Int16("setpoint_permille", permille))

	return nil
}

// Stop ends the session and returns the device to autonomous control. It
// never fails: reset write errors are logged and the in-memory state clears
// regardless, so a broken link cannot leave the manager stuck active. Calling
// Stop on an idle session is a no-op.
func (m *SessionManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.resetLocked()
	m.logger.Info("control session stopped")
}

// State returns a snapshot of the session.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SessionState{
		Active:              m.active,
		EndsAt:              m.endDeadline,
		TargetPowerPermille: m.targetPowerPermille,
	}
}

// resetLocked is the single terminal path: cancel timers, reset the device
// best-effort, clear state, push indicators. Used by Stop, by the deadline
// timer and by the Start failure path (where the session never went active
// but registers may already hold partial setup).
func (m *SessionManager) resetLocked() {
	if m.watchdogTimer != nil {
		m.watchdogTimer.Stop()
		m.watchdogTimer = nil
	}
	if m.deadlineTimer != nil {
		m.deadlineTimer.Stop()
		m.deadlineTimer = nil
	}

	// each reset register is attempted even if the previous one failed
	if err := m.writeLocked(sm.RegRemoteModeEnable, sm.RemoteModeDisabled); err != nil {
		m.logger.Warn("could not disable remote mode", zap.Error(err))
	}
	if err := m.writeLocked(sm.RegBatteryPowerSetpoint, 0); err != nil {
		m.logger.Warn("could not reset power setpoint", zap.Error(err))
	}

	m.active = false
	m.endDeadline = time.Time{}
	m.targetPowerPermille = 0

	m.notifyIndicatorsLocked(false, 0)
}

// watchdogTick re-writes the remote-mode register to feed the device
// watchdog. A failed refresh is retried on the next tick; the device's own
// watchdog is the backstop if the link is truly gone.
func (m *SessionManager) watchdogTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || !m.clock.Now().Before(m.endDeadline) {
		return
	}
	if err := m.writeLocked(sm.RegRemoteModeEnable, sm.RemoteModeEnabled); err != nil {
		m.logger.Warn("watchdog refresh failed, retrying next tick", zap.Error(err))
	} else {
		m.logger.Debug("watchdog refresh sent")
	}
	m.watchdogTimer = m.clock.AfterFunc(sm.WatchdogRefreshInterval, m.watchdogTick)
}

func (m *SessionManager) deadlineElapsed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		// lost the race against a manual Stop
		return
	}
	m.resetLocked()
	m.logger.Info("control session stopped automatically on deadline")
}

func (m *SessionManager) writeLocked(address uint16, value uint16) error {
	_, err := m.registers.Execute(sm.FnWriteMultipleRegisters, address, []uint16{value}, 0)
	return err
}

func (m *SessionManager) ratedPowerOrDefault() uint32 {
	if m.telemetry != nil {
		if rated, ok := m.telemetry.RatedPowerWatt(); ok {
			return rated
		}
	}
	m.logger.Debug("rated power unavailable, using default",
		zap.Uint32("default_watts", sm.DefaultRatedPowerWatt))
	return sm.DefaultRatedPowerWatt
}

func (m *SessionManager) notifyIndicatorsLocked(active bool, watts float64) {
	if m.indicators == nil {
		m.logger.Debug("no indicator sink registered, skipping update")
		return
	}
	m.indicators.ControlActiveChanged(active)
	m.indicators.PowerSetpointChanged(watts)
}

// powerToPermille converts watts to the device's native unit, tenths of a
// percent of rated power, clamped to the register's valid range. The sign is
// preserved from the input.
func powerToPermille(powerWatts int, ratedPowerWatt uint32) int16 {
	permille := math.Round(float64(powerWatts) / float64(ratedPowerWatt) * 1000)
	permille = math.Min(permille, float64(sm.MaxPowerPermille))
	permille = math.Max(permille, float64(sm.MinPowerPermille))
	return int16(permille)
}
