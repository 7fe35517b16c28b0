package mqtt

import (
	"testing"

	"github.com/mvaladares/solarman2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "solarman2mqtt"
	topic := "solarman2mqtt/switch/manual_control_active/command"
	r := switchCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "manual_control_active", "device extract")
}

func TestSwitchCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "solarman2mqtt"
	topic := "solarman2mqtt/switch/manual_control_active/state"
	r := switchCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestInputNumberCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "solarman2mqtt"
	topic := "solarman2mqtt/number/manual_battery_power/set"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "manual_battery_power", "number_id extract")
}

func TestInputNumberCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "solarman2mqtt"
	topic := "solarman2mqtt/switch/manual_battery_power/command"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestHADiscoveryTopics(t *testing.T) {

	assert := assert.New(t)

	device := domain.Device{Id: "sm_inverter_abcd1234"}

	sensorTopic := HADiscoverySensorTopic(domain.GenericSensor{
		Device:     device,
		Id:         domain.SENSOR_ID_BATTERY_SOC,
		SensorType: domain.SENSOR_TYPE_SENSOR,
	})
	assert.Equal("homeassistant/sensor/sm_inverter_abcd1234/battery_soc/config", sensorTopic)

	switchTopic := HADiscoverySwitchTopic(domain.GenericSwitch{
		Device: device,
		Id:     domain.SWITCH_ID_MANUAL_CONTROL,
	})
	assert.Equal("homeassistant/switch/sm_inverter_abcd1234/manual_control_active/config", switchTopic)
}

func TestInverterDiscoverySensorsIncludeControlEndsAt(t *testing.T) {

	assert := assert.New(t)

	device := domain.Device{Id: "sm_inverter_abcd1234"}
	sensors := domain.InverterBatterySensors(device)

	var endsAt *domain.GenericSensor
	for i := range sensors {
		if sensors[i].Id == domain.SENSOR_ID_CONTROL_ENDS_AT {
			endsAt = &sensors[i]
		}
	}
	require.NotNil(t, endsAt, "session end sensor is part of the discovered set")
	assert.Equal(domain.SENSOR_TYPE_SENSOR, endsAt.SensorType)
	assert.Equal(domain.DEVICE_CLASS_TIMESTAMP, endsAt.DeviceClass)

	topic := HADiscoverySensorTopic(*endsAt)
	assert.Equal("homeassistant/sensor/sm_inverter_abcd1234/control_ends_at/config", topic)
}
