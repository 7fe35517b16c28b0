package actorutil

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command topic payload to a control
// request. A start request from the switch carries no parameters; the control
// actor fills in the configured power and duration.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	if cmd.DeviceId == domain.SWITCH_ID_MANUAL_CONTROL {
		if cmd.Payload == "on" {
			return domain.ControlStartRequest{}, nil
		}
		return domain.ControlStopRequest{}, nil
	} else if cmd.DeviceId == domain.INPUT_NUMBER_ID_MANUAL_POWER {
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.ControlSetPowerRequest{
			PowerWatts: value,
		}, nil
	} else if cmd.DeviceId == domain.INPUT_NUMBER_ID_CONTROL_DURATION {
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil || value < 1 {
			return nil, err
		}
		return domain.ControlSetDurationRequest{
			DurationMinutes: value,
		}, nil
	}
	return nil, nil
}
