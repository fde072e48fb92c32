package actionchain

import (
	"fmt"
	"strings"
)

// Stage is a lifecycle phase of an action.
// Stages are totally ordered by their numeric rank; comparisons such as
// HasPassedStage rely on that order, so the ranks must not be renumbered.
// Cancelled deliberately ranks above PostProcessing: once an action takes the
// cancelled path it reports every normal stage as passed.
type Stage int

const (
	// StageNone is the initial stage of an action that never ran.
	StageNone Stage = 0
	// StageChaining marks an action suspended while one of its chained actions runs.
	StageChaining Stage = 1
	// StagePreProcessing runs before the main handler. Cancellation is still honored here.
	StagePreProcessing Stage = 10
	// StageProcessing runs the main handler.
	StageProcessing Stage = 20
	// StagePostProcessing runs after the main handler.
	StagePostProcessing Stage = 30
	// StageCancelled replaces Processing and PostProcessing for cancelled actions.
	StageCancelled Stage = 100
	// StageDisposed is terminal.
	StageDisposed Stage = 1000
)

// advanceableStages lists the stages owning a handler and a pending-chain
// queue, in the order the processor attempts them.
var advanceableStages = [...]Stage{
	StagePreProcessing,
	StageCancelled,
	StageProcessing,
	StagePostProcessing,
}

var stageNames = map[Stage]string{
	StageNone:           "none",
	StageChaining:       "chaining",
	StagePreProcessing:  "pre-processing",
	StageProcessing:     "processing",
	StagePostProcessing: "post-processing",
	StageCancelled:      "cancelled",
	StageDisposed:       "disposed",
}

// String returns the stage name.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// IsAdvanceable reports whether the stage has its own handler and pending-chain queue.
func (s Stage) IsAdvanceable() bool {
	return s.slot() >= 0
}

// slot maps an advanceable stage to its index in per-stage arrays.
func (s Stage) slot() int {
	switch s {
	case StagePreProcessing:
		return 0
	case StageProcessing:
		return 1
	case StagePostProcessing:
		return 2
	case StageCancelled:
		return 3
	default:
		return -1
	}
}

// ParseStage converts a stage name back into a Stage.
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for stage, n := range stageNames {
		if n == name {
			return stage, nil
		}
	}
	return StageNone, fmt.Errorf("%w: unknown stage name %q", ErrInvalidStage, name)
}

// maxStage returns the higher-ranked of two stages.
func maxStage(a, b Stage) Stage {
	if a > b {
		return a
	}
	return b
}
