package solarman_modbus

import "time"

type DeviceInfo struct {
	Manufacturer   string
	Model          string
	Serial         string
	RatedPowerWatt uint32
}

type BatteryTelemetry struct {
	VoltageVolt   float64
	StateOfCharge float64
	PowerWatt     float64
}

// Device is the register-level view of a Solarman-protocol inverter.
//
// Execute mirrors the wire operation: a function code, a register address and
// either data to write or a count of registers to read. Only the function
// codes declared in this package are supported.
type Device interface {
	Open() error
	Close() error
	Execute(functionCode uint8, address uint16, data []uint16, count uint16) ([]uint16, error)
	GetDeviceInfo() (*DeviceInfo, error)
	GetBatteryTelemetry() (*BatteryTelemetry, error)
}

type Instrument struct {
	RecordTime  func(fnName string, callTime time.Duration)
	RecordError func(fnName string)
}

func recordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			if instrument[i].RecordTime != nil {
				instrument[i].RecordTime(name, duration)
			}
		}
	}
}

func recordError(name string, instrument []Instrument) {
	for i := range instrument {
		if instrument[i].RecordError != nil {
			instrument[i].RecordError(name)
		}
	}
}
