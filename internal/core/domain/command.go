package domain

// OptimizerControlRequest is a user-initiated change routed to the optimizer actor.
type OptimizerControlRequest interface {
	ActorRequest
	isOptimizerControl()
}

type OptimizerControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r OptimizerControlRequestMixIn) isOptimizerControl() {}

type OptimizerControlResponse struct {
	ActorResponseMixIn
	Config OptimizerConfig
}

type SetStrategyRequest struct {
	OptimizerControlRequestMixIn
	Strategy string
}

type SetAutomationEnabledRequest struct {
	OptimizerControlRequestMixIn
	Enable bool
}

type SetManualOverrideRequest struct {
	OptimizerControlRequestMixIn
	Enable bool
}

type SetDryRunRequest struct {
	OptimizerControlRequestMixIn
	Enable bool
}

type SetMinSoCRequest struct {
	OptimizerControlRequestMixIn
	Value float64
}

type SetMaxSoCRequest struct {
	OptimizerControlRequestMixIn
	Value float64
}

type SetSoCLimitsRequest struct {
	OptimizerControlRequestMixIn
	MinSoC float64
	MaxSoC float64
}

type TriggerOptimizationRequest struct {
	OptimizerControlRequestMixIn
}

// ensure interface compliance
var (
	_ OptimizerControlRequest = (*SetStrategyRequest)(nil)
	_ OptimizerControlRequest = (*TriggerOptimizationRequest)(nil)
)
