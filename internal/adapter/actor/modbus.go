package actor

import (
	"fmt"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/internal/util/actorutil"
	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	MODBUS_ACTOR_ID = domain.ACTOR_ID_MODBUS
)

// ModbusActor owns the inverter link. Requests are served one at a time: a
// background task runs the bus exchange while the actor stays responsive,
// stashing any request that arrives before the exchange completes.
type ModbusActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	device   solarman_modbus.Device
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewModbusActor(device solarman_modbus.Device, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		device:   device,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger("modbus", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if state.device != nil {
			err := state.device.Open()
			if err != nil {
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.device.Close()
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      MODBUS_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDeviceInfoRequest:
		state.logger.Debug("modbus@default: GetDeviceInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDeviceInfo),
			mapTaskResult[domain.GetDeviceInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDeviceInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.GetBatteryTelemetryRequest:
		state.logger.Debug("modbus@default: GetBatteryTelemetryRequest")
		sender := ctx.Sender()
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getBatteryTelemetry),
			mapTaskResult[domain.GetBatteryTelemetryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetBatteryTelemetryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.ReadRegistersRequest:
		state.logger.Debug("modbus@default: ReadRegistersRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.ReadRegistersResponse, error) {
			return state.readRegisters(msg.Address, msg.Count)
		}),
			mapTaskResult[domain.ReadRegistersResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReadRegistersResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Address: msg.Address,
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case domain.WriteRegistersRequest:
		state.logger.Debug("modbus@default: WriteRegistersRequest", zap.Uint16("address", msg.Address))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.WriteRegistersResponse, error) {
			return state.writeRegisters(msg.Address, msg.Values)
		}),
			mapTaskResult[domain.WriteRegistersResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.WriteRegistersResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(2 * time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.device.Close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.device.Close()
	default:
		state.logger.Debug("modbus@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *ModbusActor) getDeviceInfo() (*domain.GetDeviceInfoResponse, error) {
	info, err := a.device.GetDeviceInfo()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetDeviceInfoResponse{
		Info: info,
	}, nil
}

func (a *ModbusActor) getBatteryTelemetry() (*domain.GetBatteryTelemetryResponse, error) {
	telemetry, err := a.device.GetBatteryTelemetry()
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetBatteryTelemetryResponse{
		Telemetry: telemetry,
	}, nil
}

func (a *ModbusActor) readRegisters(address uint16, count uint16) (*domain.ReadRegistersResponse, error) {
	values, err := a.device.Execute(solarman_modbus.FnReadHoldingRegisters, address, nil, count)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ReadRegistersResponse{
		Address: address,
		Values:  values,
	}, nil
}

func (a *ModbusActor) writeRegisters(address uint16, values []uint16) (*domain.WriteRegistersResponse, error) {
	_, err := a.device.Execute(solarman_modbus.FnWriteMultipleRegisters, address, values, 0)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.WriteRegistersResponse{}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
