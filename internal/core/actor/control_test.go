package actor

import (
	"errors"
	"testing"
	"time"

	adactor "github.com/mvaladares/solarman2mqtt/internal/adapter/actor"
	"github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/internal/core/port"
	"github.com/mvaladares/solarman2mqtt/internal/core/service"
	"github.com/mvaladares/solarman2mqtt/internal/util"
	"github.com/mvaladares/solarman2mqtt/internal/util/actorutil"
	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestControlSessionFlow(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := util.LoadTestConfig()

	device := solarman_modbus.CreateTestDevice()

	// modbus actor
	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(device, logger)
	})
	modbusActorPID := context.Spawn(modbusProps)

	// control actor
	store := service.NewTelemetryStore()
	controlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(&cfg, modbusActorPID, &eventstream.EventStream{}, store,
			func(system *actor.ActorSystem, modbusActor *actor.PID) port.RegisterClient {
				return adactor.NewActorRegisterClient(system, modbusActor, 5*time.Second)
			}, logger)
	})
	controlActorPID := context.Spawn(controlProps)

	time.Sleep(2 * time.Second)

	// start a session
	res, err := context.RequestFuture(controlActorPID, domain.ControlStartRequest{
		PowerWatts:      5000,
		DurationMinutes: 10,
	}, 10*time.Second).Result()
	require.NoError(t, err)
	startResp, ok := res.(domain.ControlStartResponse)
	require.True(t, ok)
	assert.False(t, startResp.HasResponseError(), "start should succeed")
	assert.Equal(t, 5000, startResp.PowerWatts)

	hcr, err := healthCheck(context, controlActorPID)
	require.NoError(t, err)
	assert.True(t, hcr.Healthy, "actor should be healthy")
	assert.Equal(t, "active", hcr.State, "session should be active")

	// setup sequence reached the inverter, setpoint 250 permille (5000/20000)
	writes := device.Writes()
	require.Len(t, writes, 5)
	assert.Equal(t, solarman_modbus.RegRemoteModeEnable, writes[0].Address)
	assert.Equal(t, solarman_modbus.RegBatteryPowerSetpoint, writes[4].Address)
	assert.Equal(t, []uint16{250}, writes[4].Values)

	// query session state
	res, err = context.RequestFuture(controlActorPID, domain.ControlGetStateRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	stateResp, ok := res.(domain.ControlGetStateResponse)
	require.True(t, ok)
	assert.True(t, stateResp.Active)
	assert.EqualValues(t, 250, stateResp.TargetPowerPermille)

	// stop the session
	res, err = context.RequestFuture(controlActorPID, domain.ControlStopRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	stopResp, ok := res.(domain.ControlStopResponse)
	require.True(t, ok)
	assert.False(t, stopResp.HasResponseError(), "stop never fails")

	hcr, err = healthCheck(context, controlActorPID)
	require.NoError(t, err)
	assert.Equal(t, "idle", hcr.State, "session should be idle after stop")

	writes = device.Writes()
	require.Len(t, writes, 7)
	assert.Equal(t, solarman_modbus.RegRemoteModeEnable, writes[5].Address)
	assert.Equal(t, []uint16{0}, writes[5].Values)
	assert.Equal(t, solarman_modbus.RegBatteryPowerSetpoint, writes[6].Address)
	assert.Equal(t, []uint16{0}, writes[6].Values)

	context.Stop(controlActorPID)
	context.Stop(modbusActorPID)

	as.Shutdown()
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}
