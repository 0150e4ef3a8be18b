package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/util/actorutil"
	"github.com/berfenger/energyopt2mqtt/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	DEFAULT_SOC_ENTITY           = "sensor.sunspec_battery_soc"
	DEFAULT_MODBUS_POLL_INTERVAL = 5 * time.Second
	MODBUS_READ_TIMEOUT          = 2 * time.Second
)

// ModbusActor polls the battery state of charge from a SunSpec storage device
// and forwards it to its parent as an entity state update.
type ModbusActor struct {
	behavior     actor.Behavior
	stash        *actorutil.Stash
	scheduler    *scheduler.TimerScheduler
	reader       sunspec_modbus.StorageModbusReader
	socEntity    string
	pollInterval time.Duration
	lastError    error
	logger       *zap.Logger
}

type modbusPollTick struct{}

type storageStateResult struct {
	state *sunspec_modbus.StorageState
	err   error
}

func NewModbusActor(reader sunspec_modbus.StorageModbusReader, socEntity string, pollInterval time.Duration, logger *zap.Logger) *ModbusActor {
	if socEntity == "" {
		socEntity = DEFAULT_SOC_ENTITY
	}
	if pollInterval <= 0 {
		pollInterval = DEFAULT_MODBUS_POLL_INTERVAL
	}
	act := &ModbusActor{
		reader:       reader,
		socEntity:    socEntity,
		pollInterval: pollInterval,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
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
		if err := state.reader.Open(); err != nil {
			state.logger.Error("modbus@starting could not open reader", zap.Error(err))
			panic(err)
		}
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Send(ctx.Self(), modbusPollTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.reader.Close()
	default:
		state.logger.Debug("modbus@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: state.lastError == nil,
			State:   "idle",
		})
	case modbusPollTick:
		state.logger.Debug("modbus@default tick")
		actorutil.NewBackgroundTask(ctx, func() (*storageStateResult, error) {
			st, err := state.reader.GetStorageState()
			return &storageStateResult{state: st, err: err}, nil
		}).Recover(func(err error) storageStateResult {
			return storageStateResult{err: err}
		}).WithTimeout(MODBUS_READ_TIMEOUT).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Restarting:
		state.reader.Close()
	case *actor.Stopping:
		state.reader.Close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case storageStateResult:
		state.lastError = msg.err
		ctx.Send(ctx.Parent(), state.toEntityUpdate(msg))
		state.scheduler.SendOnce(state.pollInterval, ctx.Self(), modbusPollTick{})
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.reader.Close()
	default:
		state.logger.Debug("modbus@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// toEntityUpdate reports read failures as an unavailable entity so cycles treat the SoC as absent.
func (state *ModbusActor) toEntityUpdate(res storageStateResult) domain.EntityStateUpdateRequest {
	var value string
	var attrs map[string]any
	if res.err != nil || res.state == nil {
		state.logger.Warn("modbus@waiting storage read failed", zap.Error(res.err))
		value = domain.ENTITY_STATE_UNAVAILABLE
	} else {
		state.logger.Debug("modbus@waiting storage state", zap.Float64("soc", res.state.StateOfCharge))
		value = fmt.Sprintf("%.1f", res.state.StateOfCharge)
		attrs = map[string]any{
			"unit_of_measurement": "%",
			"charge_status":       res.state.ChargeStatusStr,
			"max_capacity_w":      res.state.MaxCapacityWatt,
		}
	}
	return domain.EntityStateUpdateRequest{
		EntityId:   state.socEntity,
		State:      &value,
		Attributes: attrs,
	}
}
