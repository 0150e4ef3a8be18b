package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/adapter/statestore"
	"github.com/berfenger/energyopt2mqtt/internal/config"
	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/core/events"
	"github.com/berfenger/energyopt2mqtt/internal/core/port"
	"github.com/berfenger/energyopt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	OPTIMIZER_JOB_KEY             = "optimizer-cycle"
	DEFAULT_OPTIMIZER_INTERVAL    = 5 * time.Minute
	DEFAULT_OPTIMIZER_CYCLE_LIMIT = 30 * time.Second
)

var ErrCycleTimeout = errors.New("update cycle timed out")

// OptimizerActor owns the optimizer settings, the entity state cache and the
// last published snapshot. It is the only writer of all three.
type OptimizerActor struct {
	config      *config.Config
	behavior    actor.Behavior
	stash       *actorutil.Stash
	cycle       port.UpdateCycleDriver
	store       *statestore.Store
	eventStream *eventstream.EventStream
	scheduler   quartz.Scheduler
	stopSched   context.CancelFunc
	clock       func() time.Time

	controls  domain.OptimizerConfig
	snapshot  *domain.Snapshot
	lastError error
	inFlight  bool
	pending   bool

	interval     time.Duration
	cycleTimeout time.Duration
	logger       *zap.Logger
}

type optimizerTick struct{}

type cycleResult struct {
	snapshot *domain.Snapshot
	err      error
}

// cycleTriggerJob is the quartz job behind the periodic refresh.
type cycleTriggerJob struct {
	trigger func()
}

var _ quartz.Job = (*cycleTriggerJob)(nil)

func (j *cycleTriggerJob) Execute(_ context.Context) error {
	j.trigger()
	return nil
}

func (j *cycleTriggerJob) Description() string {
	return "trigger optimizer update cycle"
}

func NewOptimizerActor(config *config.Config, cycle port.UpdateCycleDriver, eventStream *eventstream.EventStream, logger *zap.Logger) *OptimizerActor {
	interval := config.Optimizer.UpdateInterval()
	if interval <= 0 {
		interval = DEFAULT_OPTIMIZER_INTERVAL
	}
	cycleTimeout := config.Optimizer.CycleTimeout()
	if cycleTimeout <= 0 {
		cycleTimeout = DEFAULT_OPTIMIZER_CYCLE_LIMIT
	}
	act := &OptimizerActor{
		config:       config,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		cycle:        cycle,
		store:        statestore.New(),
		eventStream:  eventStream,
		clock:        time.Now,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_OPTIMIZER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *OptimizerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *OptimizerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("optimizer@starting started")

		controls, err := state.config.Optimizer.Controls()
		if err != nil {
			state.logger.Error("optimizer@starting invalid optimizer config", zap.Error(err))
			panic(err)
		}
		state.controls = controls

		if err := state.startScheduler(ctx); err != nil {
			state.logger.Error("optimizer@starting could not start scheduler", zap.Error(err))
			panic(err)
		}

		state.publish(events.ControlsToUpdateEvents(state.controls))

		// first refresh runs right away, the trigger covers the following ones
		ctx.Send(ctx.Self(), optimizerTick{})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stopScheduler()
	default:
		state.logger.Debug("optimizer@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *OptimizerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("optimizer@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_OPTIMIZER,
			Healthy: true,
			State:   state.stateName(),
		})
	case optimizerTick:
		state.logger.Debug("optimizer@default tick")
		state.requestCycle(ctx)
	case cycleResult:
		state.onCycleResult(ctx, msg)
	case domain.OptimizerControlRequest:
		state.logger.Debug("optimizer@default control", zap.String("type", fmt.Sprintf("%T", msg)))
		controls, err := applyControl(state.controls, msg)
		if err != nil {
			state.logger.Warn("optimizer@default rejected control", zap.String("type", fmt.Sprintf("%T", msg)), zap.Error(err))
		} else {
			state.controls = controls
			state.requestCycle(ctx)
		}
		state.publish(events.ControlsToUpdateEvents(state.controls))
		state.respond(ctx, msg, domain.OptimizerControlResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			Config:             state.controls,
		})
	case domain.EntityStateUpdateRequest:
		st := state.applyEntityUpdate(msg)
		state.respond(ctx, msg, domain.EntityStateUpdateResponse{State: st})
	case domain.GetEntityStateRequest:
		st, found := state.store.Lookup(msg.EntityId)
		state.respond(ctx, msg, domain.GetEntityStateResponse{State: st, Found: found})
	case domain.ListEntityStatesRequest:
		state.respond(ctx, msg, domain.ListEntityStatesResponse{States: state.store.All()})
	case domain.DeleteEntityStateRequest:
		found := state.store.Delete(msg.EntityId)
		state.respond(ctx, msg, domain.DeleteEntityStateResponse{Found: found})
	case domain.GetSnapshotRequest:
		var snap *domain.Snapshot
		if state.snapshot != nil {
			s := *state.snapshot
			snap = &s
		}
		state.respond(ctx, msg, domain.GetSnapshotResponse{
			Snapshot:  snap,
			Config:    state.controls,
			Available: state.snapshot != nil && state.lastError == nil,
		})
	case *actor.Restarting:
		state.stopScheduler()
	case *actor.Stopping:
		state.stopScheduler()
	default:
		state.logger.Debug("optimizer@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// requestCycle starts a cycle, or coalesces into a single follow-up when one is running.
func (state *OptimizerActor) requestCycle(ctx actor.Context) {
	if state.inFlight {
		state.logger.Debug("optimizer@cycle coalesced")
		state.pending = true
		return
	}
	state.inFlight = true

	controls := state.controls
	now := state.clock()
	cycle := state.cycle
	store := state.store

	actorutil.NewBackgroundTask(ctx, func() (*cycleResult, error) {
		snap, err := cycle.Run(store, controls, now)
		if err != nil {
			return &cycleResult{err: err}, nil
		}
		return &cycleResult{snapshot: &snap}, nil
	}).Recover(func(err error) cycleResult {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s", ErrCycleTimeout, err)
		}
		return cycleResult{err: err}
	}).WithTimeout(state.cycleTimeout).PipeToAsync(ctx.Self())
}

func (state *OptimizerActor) onCycleResult(ctx actor.Context, res cycleResult) {
	state.inFlight = false
	if res.err != nil || res.snapshot == nil {
		err := res.err
		if err == nil {
			err = errors.New("update cycle returned no snapshot")
		}
		state.lastError = err
		state.logger.Error("optimizer@cycle failed, keeping last snapshot", zap.Error(err))
		state.publish(events.BridgeStateUpdateEvents(false))
	} else {
		state.lastError = nil
		state.snapshot = res.snapshot
		state.logger.Debug("optimizer@cycle done", zap.Uint64("update_count", res.snapshot.UpdateCount),
			zap.String("action", string(res.snapshot.NextAction)))
		state.publish(events.SnapshotToUpdateEvents(res.snapshot))
		state.publish(events.BridgeStateUpdateEvents(true))
	}
	if state.pending {
		state.pending = false
		state.requestCycle(ctx)
	}
}

func (state *OptimizerActor) applyEntityUpdate(req domain.EntityStateUpdateRequest) domain.EntityState {
	var st domain.EntityState
	updated := false
	if req.State != nil {
		st = state.store.SetState(req.EntityId, *req.State)
		updated = true
	}
	if req.Attributes != nil || req.ReplaceAttributes {
		st = state.store.SetAttributes(req.EntityId, req.Attributes, req.ReplaceAttributes)
		updated = true
	}
	if !updated {
		st, _ = state.store.Lookup(req.EntityId)
	}
	return st
}

// respond skips fire-and-forget messages, which have nobody to answer to.
func (state *OptimizerActor) respond(ctx actor.Context, req domain.ActorRequest, resp domain.ActorResponse) {
	if req.ReplyTo() == nil && ctx.Sender() == nil {
		return
	}
	actorutil.ForRequest(req).Respond(ctx, resp)
}

func (state *OptimizerActor) publish(evts []any) {
	if state.eventStream == nil {
		return
	}
	for _, evt := range evts {
		state.eventStream.Publish(evt)
	}
}

func (state *OptimizerActor) stateName() string {
	switch {
	case state.inFlight:
		return "running"
	case state.lastError != nil:
		return "degraded"
	default:
		return "idle"
	}
}

func (state *OptimizerActor) startScheduler(ctx actor.Context) error {
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return err
	}
	schedCtx, cancel := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	root := ctx.ActorSystem().Root
	self := ctx.Self()
	job := &cycleTriggerJob{trigger: func() {
		root.Send(self, optimizerTick{})
	}}
	err = sched.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(OPTIMIZER_JOB_KEY)), quartz.NewSimpleTrigger(state.interval))
	if err != nil {
		cancel()
		return err
	}
	state.scheduler = sched
	state.stopSched = cancel
	state.logger.Info("optimizer scheduled", zap.Duration("interval", state.interval))
	return nil
}

func (state *OptimizerActor) stopScheduler() {
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
	if state.stopSched != nil {
		state.stopSched()
		state.stopSched = nil
	}
}

func applyControl(cfg domain.OptimizerConfig, req domain.OptimizerControlRequest) (domain.OptimizerConfig, error) {
	switch r := req.(type) {
	case domain.SetStrategyRequest:
		return cfg.WithStrategy(r.Strategy)
	case domain.SetAutomationEnabledRequest:
		cfg.AutomationEnabled = r.Enable
	case domain.SetManualOverrideRequest:
		cfg.ManualOverride = r.Enable
	case domain.SetDryRunRequest:
		cfg.DryRun = r.Enable
	case domain.SetMinSoCRequest:
		return cfg.WithMinSoC(r.Value)
	case domain.SetMaxSoCRequest:
		return cfg.WithMaxSoC(r.Value)
	case domain.SetSoCLimitsRequest:
		cfg.MinSoC = r.MinSoC
		cfg.MaxSoC = r.MaxSoC
		return cfg, cfg.Validate()
	case domain.TriggerOptimizationRequest:
	default:
		return cfg, fmt.Errorf("unsupported control request %T", req)
	}
	return cfg, nil
}
