package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	sm "github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// manual clock

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.stopped = true
	return !t.fired
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run outside the clock lock so they can schedule new timers.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		c.mu.Unlock()
		next.fn()
	}
}

func (c *manualClock) liveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}

// fakes

type fakeTelemetry struct {
	rated uint32
}

func (f fakeTelemetry) RatedPowerWatt() (uint32, bool) {
	return f.rated, f.rated > 0
}

type recordedIndicators struct {
	mu        sync.Mutex
	active    []bool
	setpoints []float64
}

func (r *recordedIndicators) ControlActiveChanged(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = append(r.active, active)
}

func (r *recordedIndicators) PowerSetpointChanged(watts float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setpoints = append(r.setpoints, watts)
}

func newTestManager(t *testing.T, rated uint32) (*SessionManager, *sm.TestDevice, *manualClock, *recordedIndicators) {
	t.Helper()
	dev := sm.CreateTestDevice()
	clock := newManualClock()
	ind := &recordedIndicators{}
	mgr := NewSessionManagerWithClock(dev, fakeTelemetry{rated: rated}, ind, 0, clock, zap.NewNop())
	return mgr, dev, clock, ind
}

func setupSequence(permille uint16) []sm.RecordedWrite {
	return []sm.RecordedWrite{
		{Address: sm.RegRemoteModeEnable, Values: []uint16{1}},
		{Address: sm.RegBatterySideControl, Values: []uint16{1}},
		{Address: sm.RegPowerPriority, Values: []uint16{2}},
		{Address: sm.RegWatchdogTimeout, Values: []uint16{300}},
		{Address: sm.RegBatteryPowerSetpoint, Values: []uint16{permille}},
	}
}

func resetSequence() []sm.RecordedWrite {
	return []sm.RecordedWrite{
		{Address: sm.RegRemoteModeEnable, Values: []uint16{0}},
		{Address: sm.RegBatteryPowerSetpoint, Values: []uint16{0}},
	}
}

// tests

func TestPowerToPermille(t *testing.T) {
	cases := []struct {
		name  string
		watts int
		rated uint32
		want  int16
	}{
		{"quarter of rated", 5000, 20000, 250},
		{"full rated", 20000, 20000, 1000},
		{"double rated clamps", 20000, 10000, 1200},
		{"double rated clamps negative", -20000, 10000, -1200},
		{"zero", 0, 20000, 0},
		{"rounding up", 333, 20000, 17},
		{"sign preserved", -5000, 20000, -250},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, powerToPermille(tc.watts, tc.rated))
		})
	}
}

func TestStartWritesSetupSequence(t *testing.T) {

	mgr, dev, clock, ind := newTestManager(t, 20000)

	require.NoError(t, mgr.Start(5000, 10))

	assert.Equal(t, setupSequence(250), dev.Writes())

	state := mgr.State()
	assert.True(t, state.Active)
	assert.EqualValues(t, 250, state.TargetPowerPermille)
	assert.Equal(t, clock.Now().Add(10*time.Minute), state.EndsAt)
	assert.Equal(t, 2, clock.liveTimers(), "one watchdog timer and one deadline timer")

	assert.Equal(t, []bool{true}, ind.active)
	assert.Equal(t, []float64{5000}, ind.setpoints)
}

func TestStartNegativeSetpointEncoding(t *testing.T) {

	mgr, dev, _, _ := newTestManager(t, 10000)

	require.NoError(t, mgr.Start(-20000, 10))

	writes := dev.Writes()
	require.Len(t, writes, 5)
	// -1200 permille after clamping, two's complement on the wire
	assert.Equal(t, []uint16{0xFB50}, writes[4].Values)
}

func TestStartFailureResetsAndPropagates(t *testing.T) {

	mgr, dev, clock, ind := newTestManager(t, 20000)
	cause := errors.New("tcp: connection reset")
	dev.FailWrites = map[uint16]error{sm.RegBatteryPowerSetpoint: cause}

	err := mgr.Start(5000, 10)
	require.Error(t, err)

	var commErr *CommunicationError
	require.ErrorAs(t, err, &commErr)
	assert.Equal(t, sm.RegBatteryPowerSetpoint, commErr.Address)
	assert.ErrorIs(t, err, cause)

	// first four setup writes, then the reset pair; the failed setpoint
	// reset is also swallowed by the failure injection
	assert.Equal(t, []sm.RecordedWrite{
		{Address: sm.RegRemoteModeEnable, Values: []uint16{1}},
		{Address: sm.RegBatterySideControl, Values: []uint16{1}},
		{Address: sm.RegPowerPriority, Values: []uint16{2}},
		{Address: sm.RegWatchdogTimeout, Values: []uint16{300}},
		{Address: sm.RegRemoteModeEnable, Values: []uint16{0}},
	}, dev.Writes())

	assert.False(t, mgr.State().Active)
	assert.Equal(t, 0, clock.liveTimers())
	assert.Equal(t, []bool{false}, ind.active)
	assert.Equal(t, []float64{0}, ind.setpoints)
}

func TestStopIdleIsNoOp(t *testing.T) {

	mgr, dev, _, ind := newTestManager(t, 20000)

	mgr.Stop()
	mgr.Stop()

	assert.Empty(t, dev.Writes())
	assert.Empty(t, ind.active)
	assert.Empty(t, ind.setpoints)
}

func TestStopResetsOnce(t *testing.T) {

	mgr, dev, clock, ind := newTestManager(t, 20000)

	require.NoError(t, mgr.Start(5000, 10))
	mgr.Stop()
	mgr.Stop()

	assert.Equal(t, append(setupSequence(250), resetSequence()...), dev.Writes())
	assert.False(t, mgr.State().Active)
	assert.Equal(t, 0, clock.liveTimers())
	assert.Equal(t, []bool{true, false}, ind.active)
	assert.Equal(t, []float64{5000, 0}, ind.setpoints)
}

func TestNoRefreshAfterStop(t *testing.T) {

	mgr, dev, clock, _ := newTestManager(t, 20000)

	require.NoError(t, mgr.Start(5000, 30))
	mgr.Stop()
	baseline := len(dev.Writes())

	clock.Advance(2 * sm.WatchdogRefreshInterval)

	assert.Len(t, dev.Writes(), baseline, "a cancelled refresh timer must not re-enable remote mode")
	assert.False(t, mgr.State().Active)
	assert.Equal(t, 0, clock.liveTimers())
}

func TestStartWhileActiveRestartsSession(t *testing.T) {

	mgr, dev, clock, _ := newTestManager(t, 20000)

	require.NoError(t, mgr.Start(5000, 10))
	require.NoError(t, mgr.Start(-3000, 20))

	permille := int16(-150)
	expected := setupSequence(250)
	expected = append(expected, resetSequence()...)
	expected = append(expected, setupSequence(uint16(permille))...)
	assert.Equal(t, expected, dev.Writes())

	state := mgr.State()
	assert.True(t, state.Active)
	assert.EqualValues(t, -150, state.TargetPowerPermille)
	assert.Equal(t, clock.Now().Add(20*time.Minute), state.EndsAt)
	assert.Equal(t, 2, clock.liveTimers(), "previous session timers must be cancelled")
}

func TestWatchdogRefreshEveryTick(t *testing.T) {

	mgr, dev, clock, _ := newTestManager(t, 20000)

	require.NoError(t, mgr.Start(5000, 30))
	baseline := len(dev.Writes())

	clock.Advance(sm.WatchdogRefreshInterval)

	writes := dev.Writes()
	require.Len(t, writes, baseline+1, "a refresh is a single register write, not a re-setup")
	assert.Equal(t, sm.RecordedWrite{Address: sm.RegRemoteModeEnable, Values: []uint16{1}}, writes[baseline])

	clock.Advance(sm.WatchdogRefreshInterval)
	assert.Len(t, dev.Writes(), baseline+2)
	assert.True(t, mgr.State().Active)
}

func TestWatchdogRefreshFailureDoesNotStopSession(t *testing.T) {

	mgr, dev, clock, _ := newTestManager(t, 20000)

	require.NoError(t, mgr.Start(5000, 30))
	dev.FailWrites = map[uint16]error{sm.RegRemoteModeEnable: errors.New("timeout")}

	clock.Advance(sm.WatchdogRefreshInterval)
	assert.True(t, mgr.State().Active, "refresh failures are retried, not terminal")

	// link restored, next tick succeeds
	dev.FailWrites = nil
	baseline := len(dev.Writes())
	clock.Advance(sm.WatchdogRefreshInterval)
	assert.Len(t, dev.Writes(), baseline+1)
}

func TestDeadlineStopsSession(t *testing.T) {

	mgr, dev, clock, ind := newTestManager(t, 20000)

	require.NoError(t, mgr.Start(5000, 10))

	clock.Advance(10 * time.Minute)

	// setup, two watchdog refreshes (240 s, 480 s), then the reset pair
	expected := setupSequence(250)
	expected = append(expected,
		sm.RecordedWrite{Address: sm.RegRemoteModeEnable, Values: []uint16{1}},
		sm.RecordedWrite{Address: sm.RegRemoteModeEnable, Values: []uint16{1}})
	expected = append(expected, resetSequence()...)
	assert.Equal(t, expected, dev.Writes())

	assert.False(t, mgr.State().Active)
	assert.Equal(t, 0, clock.liveTimers())
	assert.Equal(t, []bool{true, false}, ind.active)

	// a late manual stop after the deadline is a no-op
	mgr.Stop()
	assert.Equal(t, expected, dev.Writes())
}

func TestInvalidParametersRejectedBeforeAnyWrite(t *testing.T) {

	mgr, dev, _, _ := newTestManager(t, 20000)

	assert.ErrorIs(t, mgr.Start(5000, 0), ErrInvalidParameter)
	assert.ErrorIs(t, mgr.Start(5000, 1441), ErrInvalidParameter)
	assert.ErrorIs(t, mgr.Start(24001, 10), ErrInvalidParameter)
	assert.ErrorIs(t, mgr.Start(-24001, 10), ErrInvalidParameter)

	assert.Empty(t, dev.Writes())
	assert.False(t, mgr.State().Active)
}

func TestRatedPowerFallback(t *testing.T) {

	// no telemetry yet: the default rated power applies
	mgr, dev, _, _ := newTestManager(t, 0)

	require.NoError(t, mgr.Start(5000, 10))

	writes := dev.Writes()
	require.Len(t, writes, 5)
	// 5000 W against the 20000 W default
	assert.Equal(t, []uint16{250}, writes[4].Values)
}

func TestNilIndicatorSinkTolerated(t *testing.T) {

	dev := sm.CreateTestDevice()
	clock := newManualClock()
	mgr := NewSessionManagerWithClock(dev, fakeTelemetry{rated: 20000}, nil, 0, clock, zap.NewNop())

	require.NoError(t, mgr.Start(5000, 10))
	mgr.Stop()

	assert.False(t, mgr.State().Active)
}
