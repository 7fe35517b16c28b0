package actor

import (
	"fmt"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/config"
	"github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/internal/core/events"
	"github.com/mvaladares/solarman2mqtt/internal/core/service"
	. "github.com/mvaladares/solarman2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// MonitorActor polls battery telemetry on a fixed interval, keeps the
// telemetry store fresh and publishes sensor updates on the event stream.
type MonitorActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	modbusActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	store       *service.TelemetryStore

	logger *zap.Logger
}

type monitorTick struct {
}

func NewMonitorActor(config *config.Config, modbusActor *actor.PID, eventStream *eventstream.EventStream,
	store *service.TelemetryStore, logger *zap.Logger) *MonitorActor {
	act := &MonitorActor{
		config:      config,
		modbusActor: modbusActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_MONITOR, logger),
		eventStream: eventStream,
		store:       store,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MonitorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MonitorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("monitor@starting started")

		if state.config.MonitorConfig.PollIntervalMillis > 0 {
			state.scheduler = scheduler.NewTimerScheduler(ctx)
			state.scheduler.RequestOnce(time.Duration(state.config.MonitorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), monitorTick{})
		}

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.GetDeviceInfoRequest{}, 1*time.Second), func(err error) any {
			return domain.GetDeviceInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingInfoReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("monitor@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MonitorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("monitor@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MONITOR,
			Healthy: true,
			State:   "idle",
		})
	case monitorTick:
		state.logger.Debug("monitor@default tick")
		// get battery telemetry
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.GetBatteryTelemetryRequest{}, 1*time.Second), func(err error) any {
			return domain.GetBatteryTelemetryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})

		// schedule next tick
		state.scheduler.RequestOnce(time.Duration(state.config.MonitorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), monitorTick{})
		state.behavior.BecomeStacked(state.WaitingTelemetryReceive)
	default:
		state.logger.Debug("monitor@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MonitorActor) WaitingTelemetryReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryTelemetryResponse:
		if msg.HasResponseError() {
			state.logger.Error("monitor@waiting GetBatteryTelemetryResponse error", zap.Error(msg.GetResponseError()))
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Debug("monitor@waiting GetBatteryTelemetryResponse")
		if msg.Telemetry != nil {
			state.store.SetBatteryTelemetry(msg.Telemetry)
			evs := events.BatteryTelemetryToUpdateEvents(msg.Telemetry)
			for _, ev := range evs {
				state.eventStream.Publish(ev)
			}
		}

		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("monitor@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MonitorActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceInfoResponse:
		if msg.HasResponseError() {
			state.logger.Error("monitor@waitingInfo GetDeviceInfoResponse", zap.Error(msg.GetResponseError()))
			state.behavior.Become(state.DefaultReceive)
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Debug("monitor@waitingInfo GetDeviceInfoResponse")
		if msg.Info != nil {
			state.store.SetDeviceInfo(msg.Info)
			evs := events.DeviceInfoToUpdateEvents(msg.Info)
			for _, ev := range evs {
				state.eventStream.Publish(ev)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("monitor@waitingInfo: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}
