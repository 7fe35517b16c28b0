package solarman_modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type SolarmanDevice struct {
	client     *modbus.ModbusClient
	unitId     uint8
	instrument []Instrument
	logger     *zap.Logger
}

func CreateSolarmanModbusDevice(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrument []Instrument) (*SolarmanDevice, error) {

	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return &SolarmanDevice{
		client:     client,
		unitId:     unitId,
		instrument: instrument,
		logger:     logger,
	}, nil
}

func (dev *SolarmanDevice) Open() error {
	if err := dev.client.Open(); err != nil {
		return err
	}
	return dev.client.SetUnitId(dev.unitId)
}

func (dev *SolarmanDevice) Close() error {
	return dev.client.Close()
}

// Execute performs a single register-level operation. Writes carry data,
// reads carry a count.
func (dev *SolarmanDevice) Execute(functionCode uint8, address uint16, data []uint16, count uint16) ([]uint16, error) {
	switch functionCode {
	case FnReadHoldingRegisters:
		if count == 0 {
			return nil, errors.New("solarman: read requires a register count")
		}
		return dev.readRegisters(address, count)
	case FnWriteMultipleRegisters:
		if len(data) == 0 {
			return nil, errors.New("solarman: write requires register data")
		}
		return nil, dev.writeRegisters(address, data)
	default:
		return nil, fmt.Errorf("solarman: unsupported function code 0x%02x", functionCode)
	}
}

func (dev *SolarmanDevice) GetDeviceInfo() (*DeviceInfo, error) {
	devType, err := dev.readRegister(RegDeviceType)
	if err != nil {
		return nil, err
	}
	serial, err := dev.readString(RegSerialNumber, 5)
	if err != nil {
		return nil, err
	}
	rated, err := dev.readRegister(RegRatedPower)
	if err != nil {
		return nil, err
	}

	return &DeviceInfo{
		Manufacturer:   "Solarman",
		Model:          deviceTypeToModel(devType),
		Serial:         serial,
		RatedPowerWatt: uint32(rated) * 10,
	}, nil
}

func (dev *SolarmanDevice) GetBatteryTelemetry() (*BatteryTelemetry, error) {
	// voltage, SoC, reserved, power in one block
	regs, err := dev.readRegisters(RegBatteryVoltage, 4)
	if err != nil {
		return nil, err
	}
	return &BatteryTelemetry{
		VoltageVolt:   float64(regs[0]) / 100,
		StateOfCharge: float64(regs[1]),
		PowerWatt:     float64(int16(regs[3])),
	}, nil
}

func (dev *SolarmanDevice) readRegister(addr uint16) (uint16, error) {
	defer recordTimer("ReadRegister", dev.instrument)()
	value, err := dev.client.ReadRegister(addr, modbus.HOLDING_REGISTER)
	if err != nil {
		recordError("ReadRegister", dev.instrument)
	}
	return value, err
}

func (dev *SolarmanDevice) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer recordTimer("ReadRegisters", dev.instrument)()
	values, err := dev.client.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
	if err != nil {
		recordError("ReadRegisters", dev.instrument)
	}
	return values, err
}

func (dev *SolarmanDevice) writeRegisters(addr uint16, values []uint16) error {
	defer recordTimer("WriteRegisters", dev.instrument)()
	err := dev.client.WriteRegisters(addr, values)
	if err != nil {
		recordError("WriteRegisters", dev.instrument)
	}
	return err
}

func (dev *SolarmanDevice) readString(addr uint16, quantity uint16) (string, error) {
	regs, err := dev.readRegisters(addr, quantity)
	if err != nil {
		return "", err
	}
	bytes := make([]byte, 0, len(regs)*2)
	for _, r := range regs {
		hi, lo := byte(r>>8), byte(r&0xff)
		if hi == 0 {
			break
		}
		bytes = append(bytes, hi)
		if lo == 0 {
			break
		}
		bytes = append(bytes, lo)
	}
	return string(bytes), nil
}

func deviceTypeToModel(devType uint16) string {
	switch devType {
	case 0x0002, 0x0003, 0x0004:
		return "String Inverter"
	case 0x0005:
		return "Hybrid Inverter"
	case 0x0006, 0x0007:
		return "Microinverter"
	case 0x0008:
		return "Hybrid Inverter (3 phase)"
	default:
		return fmt.Sprintf("Unknown (0x%04x)", devType)
	}
}

// ensure interface compliance
var _ Device = (*SolarmanDevice)(nil)
