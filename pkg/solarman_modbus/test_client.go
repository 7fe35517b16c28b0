package solarman_modbus

import (
	"fmt"
	"sync"
)

func CreateTestDevice() *TestDevice {
	return &TestDevice{
		RatedPowerWatt: 20000,
	}
}

// TestDevice is an in-memory Device that records every register write, for
// use in actor and service tests.
type TestDevice struct {
	mu             sync.Mutex
	writes         []RecordedWrite
	RatedPowerWatt uint32
	FailWrites     map[uint16]error
}

type RecordedWrite struct {
	Address uint16
	Values  []uint16
}

func (dev *TestDevice) Open() error {
	return nil
}

func (dev *TestDevice) Close() error {
	return nil
}

func (dev *TestDevice) Execute(functionCode uint8, address uint16, data []uint16, count uint16) ([]uint16, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	switch functionCode {
	case FnReadHoldingRegisters:
		return make([]uint16, count), nil
	case FnWriteMultipleRegisters:
		if err, ok := dev.FailWrites[address]; ok {
			return nil, err
		}
		dev.writes = append(dev.writes, RecordedWrite{Address: address, Values: append([]uint16(nil), data...)})
		return nil, nil
	default:
		return nil, fmt.Errorf("solarman: unsupported function code 0x%02x", functionCode)
	}
}

func (dev *TestDevice) GetDeviceInfo() (*DeviceInfo, error) {
	return &DeviceInfo{
		Manufacturer:   "Solarman",
		Model:          "Hybrid Inverter",
		Serial:         "SM2300DTU042",
		RatedPowerWatt: dev.RatedPowerWatt,
	}, nil
}

func (dev *TestDevice) GetBatteryTelemetry() (*BatteryTelemetry, error) {
	return &BatteryTelemetry{
		VoltageVolt:   52.16,
		StateOfCharge: 74,
		PowerWatt:     -1250,
	}, nil
}

func (dev *TestDevice) Writes() []RecordedWrite {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return append([]RecordedWrite(nil), dev.writes...)
}

// ensure interface compliance
var _ Device = (*TestDevice)(nil)
