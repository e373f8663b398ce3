package pipeline

import (
	"context"
	"fmt"
)

// State is a step of the pipeline lifecycle.
type State string

const (
	StateStart      State = "start"
	StateValidating State = "validating"
	StateStaging    State = "staging"
	StateInvoking   State = "invoking"
	StateResponding State = "responding"
	StateErroring   State = "erroring"
	StateDone       State = "done"
)

// Phase is the lifecycle state a stage runs in.
type Phase = State

const (
	// PhaseValidate checks and normalizes input fields.
	PhaseValidate Phase = StateValidating
	// PhaseStage acquires per-request resources and working state.
	PhaseStage Phase = StateStaging
	// PhaseInvoke performs the single remote operation.
	PhaseInvoke Phase = StateInvoking
)

// phaseOrder defines the execution order of stage phases.
var phaseOrder = map[Phase]int{
	PhaseValidate: 0,
	PhaseStage:    1,
	PhaseInvoke:   2,
}

// Action is the outcome of a single stage.
type Action string

const (
	// ActionAdvance passes the request to the next stage.
	ActionAdvance Action = "advance"
	// ActionFail diverts the request to the error handler.
	ActionFail Action = "fail"
)

// Result is returned by every stage.
type Result struct {
	Action Action
	Err    error
}

// Advance continues the pipeline.
func Advance() Result {
	return Result{Action: ActionAdvance}
}

// Fail terminates the pipeline with err.
func Fail(err error) Result {
	return Result{Action: ActionFail, Err: err}
}

// Stage is one unit of validation or work in a pipeline.
type Stage interface {
	// Name returns the identifier used in logs, traces and metrics.
	Name() string
	// Phase returns the lifecycle state the stage runs in.
	Phase() Phase
	// Process executes the stage against the request context.
	Process(ctx context.Context, rc *Context) Result
}

// StageFunc is the function form of Stage.Process.
type StageFunc func(ctx context.Context, rc *Context) Result

type funcStage struct {
	name  string
	phase Phase
	fn    StageFunc
}

// NewStage adapts a function into a Stage.
func NewStage(name string, phase Phase, fn StageFunc) Stage {
	return &funcStage{name: name, phase: phase, fn: fn}
}

func (s *funcStage) Name() string { return s.name }
func (s *funcStage) Phase() Phase { return s.phase }

func (s *funcStage) Process(ctx context.Context, rc *Context) Result {
	return s.fn(ctx, rc)
}

func validPhase(p Phase) error {
	if _, ok := phaseOrder[p]; !ok {
		return fmt.Errorf("invalid phase %q (must be validating, staging or invoking)", p)
	}
	return nil
}
