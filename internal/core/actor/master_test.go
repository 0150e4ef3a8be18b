package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/energyopt2mqtt/internal/adapter/actor"
	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/mqtt"
	"github.com/berfenger/energyopt2mqtt/internal/util"
	"github.com/berfenger/energyopt2mqtt/internal/util/actorutil"
	"github.com/berfenger/energyopt2mqtt/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	discovery := make(chan domain.PublishDiscoveryRequest, 4)
	probe := context.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if req, ok := ctx.Message().(domain.PublishDiscoveryRequest); ok {
			discovery <- req
		}
	}))

	cycle := &fakeCycle{}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.ModbusActor {
			return adactor.NewModbusActor(sunspec_modbus.CreateTestStorageModbusReader(48), cfg.Modbus.SocEntity, 100*time.Millisecond, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, probe, logger)
		}, func(es *eventstream.EventStream) *OptimizerActor {
			return NewOptimizerActor(&cfg, cycle, es, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	require.NoError(t, err)
	defer func() {
		context.Stop(pid)
		as.Shutdown()
	}()

	time.Sleep(1 * time.Second)

	t.Run("health", func(t *testing.T) {
		res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
		require.NoError(t, err)
		healthResp, ok := res.(domain.ActorHealthResponse)
		assert.True(t, ok)
		assert.Equal(t, domain.ACTOR_ID_MASTER, healthResp.Id)
		assert.True(t, healthResp.Healthy, "healthy is true")
	})

	t.Run("discovery", func(t *testing.T) {
		select {
		case req := <-discovery:
			assert.Len(t, req.Sensors, 15)
			assert.Len(t, req.Switches, 3)
			assert.Len(t, req.InputNumbers, 2)
			assert.Len(t, req.Selects, 1)
			assert.Len(t, req.Buttons, 1)
			assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, req.Sensors[0].Id)
		case <-time.After(2 * time.Second):
			t.Fatal("discovery not published")
		}
	})

	t.Run("modbus soc reaches the state store", func(t *testing.T) {
		res, err := context.RequestFuture(pid, domain.GetEntityStateRequest{EntityId: cfg.Modbus.SocEntity}, 2*time.Second).Result()
		require.NoError(t, err)
		resp, ok := res.(domain.GetEntityStateResponse)
		require.True(t, ok)
		require.True(t, resp.Found)
		assert.Equal(t, "48.0", resp.State.State)
	})

	t.Run("mqtt command", func(t *testing.T) {
		context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
			DeviceId: domain.SELECT_ID_STRATEGY,
			Command:  mqtt.COMMAND_SELECT,
			Payload:  string(domain.STRATEGY_GRID_INDEPENDENCE),
		}})
		// invalid payloads are dropped
		context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
			DeviceId: domain.SWITCH_ID_DRY_RUN,
			Command:  mqtt.COMMAND_SWITCH,
			Payload:  "maybe",
		}})
		time.Sleep(300 * time.Millisecond)

		res, err := context.RequestFuture(pid, domain.GetSnapshotRequest{}, 2*time.Second).Result()
		require.NoError(t, err)
		resp, ok := res.(domain.GetSnapshotResponse)
		require.True(t, ok)
		assert.Equal(t, domain.STRATEGY_GRID_INDEPENDENCE, resp.Config.Strategy)
		assert.True(t, resp.Config.DryRun)
		require.NotNil(t, resp.Snapshot)
		assert.Equal(t, domain.STRATEGY_GRID_INDEPENDENCE, resp.Snapshot.Strategy)
	})

	t.Run("statestream update", func(t *testing.T) {
		value := "unavailable"
		context.Send(pid, domain.EntityStateUpdateRequest{EntityId: "sensor.battery", State: &value})
		time.Sleep(100 * time.Millisecond)

		res, err := context.RequestFuture(pid, domain.GetEntityStateRequest{EntityId: "sensor.battery"}, 2*time.Second).Result()
		require.NoError(t, err)
		resp := res.(domain.GetEntityStateResponse)
		require.True(t, resp.Found)
		assert.True(t, resp.State.IsUnavailable())
	})

	t.Run("http control", func(t *testing.T) {
		res, err := context.RequestFuture(pid, domain.SetMaxSoCRequest{Value: 150}, 2*time.Second).Result()
		require.NoError(t, err)
		resp, ok := res.(domain.OptimizerControlResponse)
		require.True(t, ok)
		assert.True(t, resp.HasResponseError())
		assert.Equal(t, 95.0, resp.Config.MaxSoC)
	})
}
