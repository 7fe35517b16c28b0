package events

import (
	"time"

	. "github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"
)

func BatteryTelemetryToUpdateEvents(bt *solarman_modbus.BatteryTelemetry) []any {
	var events []any

	// Battery Power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_POWER,
		},
		Value:    bt.PowerWatt,
		Decimals: 0,
	})
	// Battery SoC
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_SOC,
		},
		Value:    bt.StateOfCharge,
		Decimals: 0,
	})
	// Battery Voltage
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_VOLTAGE,
		},
		Value:    bt.VoltageVolt,
		Decimals: 2,
	})

	return events
}

func DeviceInfoToUpdateEvents(info *solarman_modbus.DeviceInfo) []any {
	var events []any

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_RATED_POWER,
		},
		Value:    float64(info.RatedPowerWatt),
		Decimals: 0,
	})

	return events
}

func ManualControlSwitchUpdateEvent(active bool) any {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_MANUAL_CONTROL,
		},
		Value: active,
	}
}

func ManualControlPowerUpdateEvent(watts float64) any {
	return InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_MANUAL_POWER,
		},
		Value: watts,
	}
}

func ControlDurationUpdateEvent(minutes float64) any {
	return InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_CONTROL_DURATION,
		},
		Value: minutes,
	}
}

func ControlEndsAtUpdateEvent(endsAt time.Time) any {
	value := ""
	if !endsAt.IsZero() {
		value = endsAt.Format(time.RFC3339)
	}
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_ENDS_AT,
		},
		Value: value,
	}
}
