package port

// RegisterClient is the session manager's view of the device. Calls are
// synchronous and blocking; timeout handling belongs to the implementation.
type RegisterClient interface {
	Execute(functionCode uint8, address uint16, data []uint16, count uint16) ([]uint16, error)
}

// TelemetrySource provides the last polled rated power. The second return is
// false until a device info read has succeeded at least once.
type TelemetrySource interface {
	RatedPowerWatt() (uint32, bool)
}

// IndicatorSink reflects session state to the outside (MQTT entities, UI).
// Implementations must never fail the session; a missing indicator is the
// sink's problem, not the manager's.
type IndicatorSink interface {
	ControlActiveChanged(active bool)
	PowerSetpointChanged(watts float64)
}
