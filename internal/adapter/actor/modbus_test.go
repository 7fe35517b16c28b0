package actor

import (
	"testing"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/internal/util/actorutil"
	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetDeviceInfoModbusActor(t *testing.T) {

	assert := assert.New(t)

	device := solarman_modbus.CreateTestDevice()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(device, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetDeviceInfoRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDeviceInfoResponse)

	assert.Equal(resp.Info.Manufacturer, "Solarman", "Inverter manufacturer")
	assert.Equal(resp.Info.Model, "Hybrid Inverter", "Inverter model")
	assert.Equal(resp.Info.RatedPowerWatt, uint32(20000), "Inverter rated power")

	context.Stop(pid)

	as.Shutdown()
}

func TestWriteRegistersModbusActor(t *testing.T) {

	assert := assert.New(t)

	device := solarman_modbus.CreateTestDevice()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(device, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.WriteRegistersRequest{
		Address: solarman_modbus.RegRemoteModeEnable,
		Values:  []uint16{solarman_modbus.RemoteModeEnabled},
	}

	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.WriteRegistersResponse)

	assert.False(resp.HasResponseError(), "write should succeed")

	writes := device.Writes()
	assert.Len(writes, 1, "one recorded write")
	assert.Equal(writes[0].Address, solarman_modbus.RegRemoteModeEnable, "write address")
	assert.Equal(writes[0].Values, []uint16{1}, "write value")

	context.Stop(pid)

	as.Shutdown()
}

func TestActorRegisterClientWrite(t *testing.T) {

	assert := assert.New(t)

	device := solarman_modbus.CreateTestDevice()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(device, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	client := NewActorRegisterClient(as, pid, 15*time.Second)

	_, err := client.Execute(solarman_modbus.FnWriteMultipleRegisters,
		solarman_modbus.RegBatteryPowerSetpoint, []uint16{250}, 0)
	assert.NoError(err, "write through register client")

	values, err := client.Execute(solarman_modbus.FnReadHoldingRegisters,
		solarman_modbus.RegBatterySOC, nil, 1)
	assert.NoError(err, "read through register client")
	assert.Len(values, 1, "one register read")

	writes := device.Writes()
	assert.Len(writes, 1, "one recorded write")
	assert.Equal(writes[0].Address, solarman_modbus.RegBatteryPowerSetpoint, "write address")

	context.Stop(pid)

	as.Shutdown()
}
