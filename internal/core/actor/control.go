package actor

import (
	"fmt"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/config"
	"github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/internal/core/events"
	"github.com/mvaladares/solarman2mqtt/internal/core/port"
	"github.com/mvaladares/solarman2mqtt/internal/core/service"
	"github.com/mvaladares/solarman2mqtt/internal/metrics"
	. "github.com/mvaladares/solarman2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// RegisterClientProvider builds the register client the session manager uses
// to reach the inverter. Injected so tests can route writes to a fake.
type RegisterClientProvider func(system *actor.ActorSystem, modbusActor *actor.PID) port.RegisterClient

// ControlActor drives manual battery control sessions. The session
// bookkeeping (register sequence, watchdog refresh, deadline) lives in
// service.SessionManager; this actor adapts it to commands coming from MQTT
// and HTTP, and mirrors session state to the event stream.
type ControlActor struct {
	ActorWithStates
	stash       *Stash
	modbusActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	store       *service.TelemetryStore
	manager     *service.SessionManager
	provider    RegisterClientProvider

	desiredPowerWatts      float64
	desiredDurationMinutes float64

	logger *zap.Logger
}

type controlActionResult struct {
	message any
	replyTo *actor.PID
}

func NewControlActor(config *config.Config, modbusActor *actor.PID, eventStream *eventstream.EventStream,
	store *service.TelemetryStore, provider RegisterClientProvider, logger *zap.Logger) *ControlActor {
	act := &ControlActor{
		config:                 config,
		modbusActor:            modbusActor,
		stash:                  &Stash{},
		logger:                 ActorLogger(domain.ACTOR_ID_CONTROL, logger),
		eventStream:            eventStream,
		store:                  store,
		provider:               provider,
		desiredPowerWatts:      0,
		desiredDurationMinutes: float64(config.ControlConfig.DefaultDurationMinutes),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(SCStartingState{
		actor: act,
	})
	return act
}

func (state *ControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// streamIndicatorSink mirrors session transitions to the event stream. The
// session manager may call it from a timer goroutine; eventstream publish is
// safe there.
type streamIndicatorSink struct {
	eventStream *eventstream.EventStream
}

func (s streamIndicatorSink) ControlActiveChanged(active bool) {
	metrics.SetControlActive(active)
	s.eventStream.Publish(events.ManualControlSwitchUpdateEvent(active))
}

func (s streamIndicatorSink) PowerSetpointChanged(watts float64) {
	metrics.SetSetpointWatts(watts)
	s.eventStream.Publish(events.ManualControlPowerUpdateEvent(watts))
}

// Starting state

type SCStartingState struct {
	ActorState
	actor *ControlActor
}

func (state SCStartingState) Name() string {
	return "starting"
}

func (state SCStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("control@starting started")

		registers := state.actor.provider(ctx.ActorSystem(), state.actor.modbusActor)
		state.actor.manager = service.NewSessionManager(registers, state.actor.store,
			streamIndicatorSink{eventStream: state.actor.eventStream},
			state.actor.config.ControlConfig.MaxPowerWatt, state.actor.logger)

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.modbusActor, domain.GetDeviceInfoRequest{}, 1*time.Second), func(err error) any {
			return domain.GetDeviceInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.Become(SCWaitingInfoState{
			actor: state.actor,
		})
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Waiting info state

type SCWaitingInfoState struct {
	ActorState
	actor *ControlActor
}

func (state SCWaitingInfoState) Name() string {
	return "waitingInfo"
}

func (state SCWaitingInfoState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceInfoResponse:
		if msg.HasResponseError() {
			// sessions still work without identity, rated power falls back
			state.actor.logger.Warn("control@waitingInfo GetDeviceInfoResponse error", zap.Error(msg.GetResponseError()))
		} else if msg.Info != nil {
			state.actor.store.SetDeviceInfo(msg.Info)
		}
		state.actor.Become(SCReadyState{
			actor: state.actor,
		}.OnEnter(ctx))
		state.actor.stash.UnstashAll(ctx)
	default:
		state.actor.logger.Debug("control@waitingInfo: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Ready state

type SCReadyState struct {
	ActorState
	actor *ControlActor
}

func (state SCReadyState) Name() string {
	return "ready"
}

func (state SCReadyState) OnEnter(ctx actor.Context) SCReadyState {
	// publish initial entity states so HA does not show unknown
	state.actor.eventStream.Publish(events.ManualControlSwitchUpdateEvent(false))
	state.actor.eventStream.Publish(events.ManualControlPowerUpdateEvent(state.actor.desiredPowerWatts))
	state.actor.eventStream.Publish(events.ControlDurationUpdateEvent(state.actor.desiredDurationMinutes))
	return state
}

func (state SCReadyState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("control@ready: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CONTROL,
			Healthy: true,
			State:   state.actor.sessionStateName(),
		})
	case domain.ControlRequest:
		switch cmd := msg.(type) {
		case domain.ControlStartRequest:
			power := cmd.PowerWatts
			duration := cmd.DurationMinutes
			if duration == 0 {
				// switch-triggered start, use the configured values
				power = int(state.actor.desiredPowerWatts)
				duration = int(state.actor.desiredDurationMinutes)
			}
			state.actor.logger.Sugar().Debugf("control@ready: cmd start %dW %dmin", power, duration)
			state.startSession(ctx, cmd, power, duration)
		case domain.ControlStopRequest:
			state.actor.logger.Debug("control@ready: cmd stop")
			state.stopSession(ctx, cmd)
		case domain.ControlSetPowerRequest:
			state.actor.logger.Sugar().Debugf("control@ready: cmd setPower %f", cmd.PowerWatts)
			state.actor.desiredPowerWatts = cmd.PowerWatts
			state.actor.eventStream.Publish(events.ManualControlPowerUpdateEvent(cmd.PowerWatts))
		case domain.ControlSetDurationRequest:
			state.actor.logger.Sugar().Debugf("control@ready: cmd setDuration %f", cmd.DurationMinutes)
			state.actor.desiredDurationMinutes = cmd.DurationMinutes
			state.actor.eventStream.Publish(events.ControlDurationUpdateEvent(cmd.DurationMinutes))
		case domain.ControlGetStateRequest:
			s := state.actor.manager.State()
			ForRequest(cmd).Respond(ctx, domain.ControlGetStateResponse{
				Active:              s.Active,
				EndsAt:              s.EndsAt,
				TargetPowerPermille: s.TargetPowerPermille,
			})
		}
	default:
		state.actor.logger.Debug("control@ready: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state SCReadyState) startSession(ctx actor.Context, cmd domain.ControlStartRequest, power, duration int) {
	replyTo := ForRequest(cmd).ReplyTo(ctx)
	manager := state.actor.manager
	NewBackgroundTaskNoError(ctx, func() *controlActionResult {
		err := manager.Start(power, duration)
		metrics.RecordSessionStart(err)
		return &controlActionResult{
			message: domain.ControlStartResponse{
				ControlResponseMixIn: domain.ControlResponseMixIn{
					ActorResponse: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				PowerWatts:      power,
				DurationMinutes: duration,
			},
			replyTo: replyTo,
		}
	}).PipeTo(ctx.Self())
	state.actor.BecomeStacked(SCAwaitActionState{
		actor: state.actor,
	})
}

func (state SCReadyState) stopSession(ctx actor.Context, cmd domain.ControlStopRequest) {
	replyTo := ForRequest(cmd).ReplyTo(ctx)
	manager := state.actor.manager
	NewBackgroundTaskNoError(ctx, func() *controlActionResult {
		manager.Stop()
		return &controlActionResult{
			message: domain.ControlStopResponse{
				ControlResponseMixIn: domain.ControlResponseMixIn{
					ActorResponse: domain.ActorResponseMixIn{},
				},
			},
			replyTo: replyTo,
		}
	}).PipeTo(ctx.Self())
	state.actor.BecomeStacked(SCAwaitActionState{
		actor: state.actor,
	})
}

// Await action state

type SCAwaitActionState struct {
	ActorState
	actor *ControlActor
}

func (state SCAwaitActionState) Name() string {
	return "awaitAction"
}

func (state SCAwaitActionState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case controlActionResult:
		state.actor.logger.Debug("control@awaitAction: controlActionResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		state.actor.eventStream.Publish(events.ControlEndsAtUpdateEvent(state.actor.manager.State().EndsAt))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	default:
		state.actor.logger.Debug("control@awaitAction: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state *ControlActor) sessionStateName() string {
	if state.manager != nil && state.manager.State().Active {
		return "active"
	}
	return "idle"
}
