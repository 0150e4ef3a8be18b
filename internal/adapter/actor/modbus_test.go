package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/util/actorutil"
	"github.com/berfenger/energyopt2mqtt/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// modbusParent spawns the poller as a child and forwards its updates to out.
type modbusParent struct {
	reader sunspec_modbus.StorageModbusReader
	logger *zap.Logger
	out    chan domain.EntityStateUpdateRequest
	child  *actor.PID
}

func (p *modbusParent) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.child = ctx.Spawn(actor.PropsFromProducer(func() actor.Actor {
			return NewModbusActor(p.reader, "", 100*time.Millisecond, p.logger)
		}))
	case domain.EntityStateUpdateRequest:
		p.out <- msg
	case domain.ActorHealthRequest:
		ctx.Forward(p.child)
	}
}

func TestModbusActorForwardsSoC(t *testing.T) {
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	reader := sunspec_modbus.CreateTestStorageModbusReader(56.3)
	out := make(chan domain.EntityStateUpdateRequest, 16)
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &modbusParent{reader: reader, logger: logger, out: out}
	}))

	select {
	case upd := <-out:
		assert.Equal(t, DEFAULT_SOC_ENTITY, upd.EntityId)
		require.NotNil(t, upd.State)
		assert.Equal(t, "56.3", *upd.State)
		assert.Equal(t, "charging", upd.Attributes["charge_status"])
	case <-time.After(2 * time.Second):
		t.Fatal("no soc update received")
	}

	// read failures surface as an unavailable entity
	reader.SetError(errors.New("bus error"))
	deadline := time.After(2 * time.Second)
	for {
		select {
		case upd := <-out:
			if *upd.State == domain.ENTITY_STATE_UNAVAILABLE {
				assert.Nil(t, upd.Attributes)
				context.Stop(pid)
				as.Shutdown()
				return
			}
		case <-deadline:
			t.Fatal("no unavailable update received")
		}
	}
}
