package solarman_modbus

import "time"

// Modbus function codes used by this package.
const (
	FnReadHoldingRegisters   uint8 = 0x03
	FnWriteMultipleRegisters uint8 = 0x10
)

// Battery control register map. Device specific, treated as protocol facts.
const (
	RegRemoteModeEnable     uint16 = 0x044C // 1 = remote control, 0 = autonomous
	RegWatchdogTimeout      uint16 = 0x044D // seconds
	RegBatterySideControl   uint16 = 0x0450
	RegPowerPriority        uint16 = 0x0451
	RegBatteryPowerSetpoint uint16 = 0x0455 // 0.1% of rated power, signed
)

// Values written to the control registers.
const (
	RemoteModeEnabled  uint16 = 1
	RemoteModeDisabled uint16 = 0

	BatterySideControlEnabled uint16 = 1
	PowerPriorityBattery      uint16 = 2

	// WatchdogTimeoutSeconds is written to RegWatchdogTimeout on session
	// start. The refresh interval below must stay strictly under it or the
	// device reverts to autonomous control mid-session.
	WatchdogTimeoutSeconds uint16 = 300

	MaxPowerPermille int16 = 1200
	MinPowerPermille int16 = -1200
)

// WatchdogRefreshInterval is the cadence at which RegRemoteModeEnable is
// re-written to feed the device watchdog.
const WatchdogRefreshInterval = 240 * time.Second

// DefaultRatedPowerWatt is assumed when the rated power register has not been
// read yet or reads as zero.
const DefaultRatedPowerWatt uint32 = 20000

// Telemetry register map.
const (
	RegDeviceType     uint16 = 0x0000
	RegSerialNumber   uint16 = 0x0003 // 5 registers, ASCII
	RegRatedPower     uint16 = 0x0010 // 10 W units
	RegBatteryVoltage uint16 = 0x024B // 0.01 V units
	RegBatterySOC     uint16 = 0x024C // percent
	RegBatteryPower   uint16 = 0x024E // W, signed (positive = discharge)
)
