package actorutil

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

var ErrInvalidCommandPayload = errors.New("invalid command payload")

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
	case zap.ErrorLevel, zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a command received from Home Assistant to an
// optimizer control request. Unknown entities yield (nil, nil).
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.OptimizerControlRequest, error) {
	payload := strings.TrimSpace(cmd.Payload)
	switch cmd.Command {
	case mqtt.COMMAND_SWITCH:
		enable, err := switchPayload(payload)
		if err != nil {
			return nil, err
		}
		switch cmd.DeviceId {
		case domain.SWITCH_ID_AUTOMATION_ENABLED:
			return domain.SetAutomationEnabledRequest{Enable: enable}, nil
		case domain.SWITCH_ID_MANUAL_OVERRIDE:
			return domain.SetManualOverrideRequest{Enable: enable}, nil
		case domain.SWITCH_ID_DRY_RUN:
			return domain.SetDryRunRequest{Enable: enable}, nil
		}
	case mqtt.COMMAND_NUMBER:
		value, err := cast.ToFloat64E(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCommandPayload, err)
		}
		switch cmd.DeviceId {
		case domain.INPUT_NUMBER_ID_MIN_SOC:
			return domain.SetMinSoCRequest{Value: value}, nil
		case domain.INPUT_NUMBER_ID_MAX_SOC:
			return domain.SetMaxSoCRequest{Value: value}, nil
		}
	case mqtt.COMMAND_SELECT:
		if cmd.DeviceId == domain.SELECT_ID_STRATEGY {
			return domain.SetStrategyRequest{Strategy: payload}, nil
		}
	case mqtt.COMMAND_BUTTON:
		if cmd.DeviceId == domain.BUTTON_ID_TRIGGER_OPTIMIZATION {
			return domain.TriggerOptimizationRequest{}, nil
		}
	}
	return nil, nil
}

func switchPayload(payload string) (bool, error) {
	switch {
	case strings.EqualFold(payload, mqtt.MQTT_PAYLOAD_ON):
		return true, nil
	case strings.EqualFold(payload, mqtt.MQTT_PAYLOAD_OFF):
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidCommandPayload, payload)
}
