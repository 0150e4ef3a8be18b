package port

import (
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
)

type DecisionEngine interface {
	Decide(inputs domain.DecisionInputs, cfg domain.OptimizerConfig) domain.Decision
}

type UpdateCycleDriver interface {
	Run(states StateLookup, cfg domain.OptimizerConfig, now time.Time) (domain.Snapshot, error)
	UpdateCount() uint64
}
