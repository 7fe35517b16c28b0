package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	SENSOR_ID_BATTERY_POWER   = "battery_power"
	SENSOR_ID_BATTERY_SOC     = "battery_soc"
	SENSOR_ID_BATTERY_VOLTAGE = "battery_voltage"
	SENSOR_ID_RATED_POWER     = "rated_power"
	SENSOR_ID_CONTROL_ENDS_AT = "control_ends_at"

	SWITCH_ID_MANUAL_CONTROL = "manual_control_active"

	INPUT_NUMBER_ID_MANUAL_POWER     = "manual_battery_power"
	INPUT_NUMBER_ID_CONTROL_DURATION = "control_duration"

	STATE_CLASS_MEASUREMENT  = "measurement"
	DEVICE_CLASS_BATTERY     = "battery"
	DEVICE_CLASS_POWER       = "power"
	DEVICE_CLASS_VOLTAGE     = "voltage"
	DEVICE_CLASS_TIMESTAMP   = "timestamp"
	ENTITY_CLASS_DIAGNOSTIC  = "diagnostic"
	SENSOR_TYPE_SENSOR       = "sensor"
	SENSOR_TYPE_BINARY       = "binary_sensor"
	INPUT_NUMBER_MODE_BOX    = "box"
	INPUT_NUMBER_MODE_SLIDER = "slider"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string
	DeviceClass       string
	EntityCategory    string
	EnabledByDefault  *bool
	Icon              string
}

type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

type GenericInputNumber struct {
	Device       Device
	Id           string
	Name         string
	UniqueId     string
	Icon         string
	Max          float64
	Min          float64
	Step         float64
	Mode         string
	InitialValue float64
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("solarman2mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "MValadares",
		Model:        "Solarman2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Solarman2MQTT %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(info *solarman_modbus.DeviceInfo) Device {
	return Device{
		Id:           fmt.Sprintf("sm_inverter_%s", md5HashShort(info.Serial)),
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Name:         fmt.Sprintf("%s %s %s", info.Manufacturer, info.Model, md5HashShort(info.Serial)),
	}
}

// IdDevice strips a device down to id and name so repeated discovery
// payloads stay small.
func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:      bridgeDevice,
			Id:          SENSOR_ID_BRIDGE_STATE,
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        "Bridge state",
			UniqueId:    fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
			DeviceClass: "connectivity",
		},
	}
}

func InverterBatterySensors(inverterDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:            inverterDevice,
			Id:                SENSOR_ID_BATTERY_POWER,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Battery power",
			UniqueId:          fmt.Sprintf("%s_%s", inverterDevice.Id, SENSOR_ID_BATTERY_POWER),
			UnitOfMeasurement: "W",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_POWER,
		},
		{
			Device:            inverterDevice,
			Id:                SENSOR_ID_BATTERY_SOC,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Battery state of charge",
			UniqueId:          fmt.Sprintf("%s_%s", inverterDevice.Id, SENSOR_ID_BATTERY_SOC),
			UnitOfMeasurement: "%",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_BATTERY,
		},
		{
			Device:            inverterDevice,
			Id:                SENSOR_ID_BATTERY_VOLTAGE,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Battery voltage",
			UniqueId:          fmt.Sprintf("%s_%s", inverterDevice.Id, SENSOR_ID_BATTERY_VOLTAGE),
			UnitOfMeasurement: "V",
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_VOLTAGE,
			EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		},
		{
			Device:            inverterDevice,
			Id:                SENSOR_ID_RATED_POWER,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              "Rated power",
			UniqueId:          fmt.Sprintf("%s_%s", inverterDevice.Id, SENSOR_ID_RATED_POWER),
			UnitOfMeasurement: "W",
			DeviceClass:       DEVICE_CLASS_POWER,
			EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		},
		{
			Device:      inverterDevice,
			Id:          SENSOR_ID_CONTROL_ENDS_AT,
			SensorType:  SENSOR_TYPE_SENSOR,
			Name:        "Control ends at",
			UniqueId:    fmt.Sprintf("%s_%s", inverterDevice.Id, SENSOR_ID_CONTROL_ENDS_AT),
			DeviceClass: DEVICE_CLASS_TIMESTAMP,
			Icon:        "mdi:clock-end",
		},
	}
}

func ManualControlSwitches(inverterDevice Device) []GenericSwitch {
	return []GenericSwitch{
		{
			Device:   inverterDevice,
			Id:       SWITCH_ID_MANUAL_CONTROL,
			Name:     "Manual control active",
			UniqueId: fmt.Sprintf("%s_%s", inverterDevice.Id, SWITCH_ID_MANUAL_CONTROL),
			Icon:     "mdi:battery-clock",
		},
	}
}

func ManualControlInputNumbers(inverterDevice Device, maxPowerWatt uint32) []GenericInputNumber {
	return []GenericInputNumber{
		{
			Device:       inverterDevice,
			Id:           INPUT_NUMBER_ID_MANUAL_POWER,
			Name:         "Manual battery power",
			UniqueId:     fmt.Sprintf("%s_%s", inverterDevice.Id, INPUT_NUMBER_ID_MANUAL_POWER),
			Icon:         "mdi:battery-charging",
			Min:          -float64(maxPowerWatt),
			Max:          float64(maxPowerWatt),
			Step:         100,
			Mode:         INPUT_NUMBER_MODE_BOX,
			InitialValue: 0,
		},
		{
			Device:       inverterDevice,
			Id:           INPUT_NUMBER_ID_CONTROL_DURATION,
			Name:         "Control duration",
			UniqueId:     fmt.Sprintf("%s_%s", inverterDevice.Id, INPUT_NUMBER_ID_CONTROL_DURATION),
			Icon:         "mdi:timer-outline",
			Min:          1,
			Max:          1440,
			Step:         1,
			Mode:         INPUT_NUMBER_MODE_BOX,
			InitialValue: 60,
		},
	}
}

func md5HashShort(value string) string {
	hash := md5.Sum([]byte(value))
	return hex.EncodeToString(hash[:])[:8]
}
