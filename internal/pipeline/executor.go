package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/camera-gateway/internal/metrics"
	"github.com/tjfontaine/camera-gateway/internal/server"
)

const tracerName = "github.com/tjfontaine/camera-gateway/internal/pipeline"

// Executor runs an ordered list of stages for each request.
type Executor struct {
	name      string
	stages    []Stage
	responder Responder
	logger    *slog.Logger
	tracer    trace.Tracer
}

// ExecutorConfig configures an executor.
type ExecutorConfig struct {
	// Name identifies the pipeline in logs, traces and metrics.
	Name string
	// Stages run in phase order; stages of the same phase keep their order.
	Stages []Stage
	// Responder writes the success response.
	Responder Responder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewExecutor creates an executor from configuration.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Name == "" {
		return nil, errors.New("pipeline name is required")
	}
	if cfg.Responder == nil {
		return nil, fmt.Errorf("pipeline %s: responder is required", cfg.Name)
	}

	stages := make([]Stage, len(cfg.Stages))
	copy(stages, cfg.Stages)
	for _, s := range stages {
		if err := validPhase(s.Phase()); err != nil {
			return nil, fmt.Errorf("pipeline %s: stage %s: %w", cfg.Name, s.Name(), err)
		}
	}

	// Sort by phase
	sort.SliceStable(stages, func(i, j int) bool {
		return phaseOrder[stages[i].Phase()] < phaseOrder[stages[j].Phase()]
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		name:      cfg.Name,
		stages:    stages,
		responder: cfg.Responder,
		logger:    logger.With(slog.String("pipeline", cfg.Name)),
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Name returns the pipeline name.
func (e *Executor) Name() string {
	return e.name
}

// Stages returns the stage names in execution order.
func (e *Executor) Stages() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name()
	}
	return names
}

// ServeHTTP runs the pipeline for an inbound request.
func (e *Executor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := NewContext(server.GetRequestID(r.Context()), r.URL.Query())
	e.Run(r.Context(), w, rc)
}

// Run executes the stages sequentially against rc and writes exactly one
// response: the responder's on success, the error handler's otherwise.
func (e *Executor) Run(ctx context.Context, w http.ResponseWriter, rc *Context) {
	ctx, span := e.tracer.Start(ctx, "pipeline."+e.name,
		trace.WithAttributes(attribute.String("request_id", rc.RequestID)))
	defer span.End()

	server.AddLogField(ctx, "pipeline", e.name)
	tw := &trackingWriter{ResponseWriter: w}

	defer func() {
		if p := recover(); p != nil {
			e.recoverPanic(ctx, span, tw, rc, p)
		}
	}()

	rc.enter(StateStart)
	for _, stage := range e.stages {
		if rc.State() != stage.Phase() {
			rc.enter(stage.Phase())
		}

		res := e.runStage(ctx, stage, rc)
		if res.Action == ActionFail {
			err := res.Err
			if err == nil {
				err = fmt.Errorf("stage %s failed", stage.Name())
			}
			server.AddLogField(ctx, "stage", stage.Name())
			e.fail(ctx, span, tw, rc, err)
			return
		}
	}

	rc.enter(StateResponding)
	if err := e.responder.Respond(ctx, tw, rc); err != nil {
		if !tw.wroteHeader {
			e.fail(ctx, span, tw, rc, err)
			return
		}
		// Transmission failed mid-way; the release obligation is unchanged.
		e.logger.Warn("response transmission failed",
			slog.String("request_id", rc.RequestID),
			slog.String("error", err.Error()),
		)
	}

	if err := rc.releaseResource(); err != nil {
		e.logger.Warn("failed to release staged resource",
			slog.String("request_id", rc.RequestID),
			slog.String("error", err.Error()),
		)
	}

	rc.enter(StateDone)
	metrics.RecordPipelineRun(e.name, metrics.OutcomeSuccess)
	span.SetStatus(codes.Ok, "")
}

func (e *Executor) runStage(ctx context.Context, stage Stage, rc *Context) Result {
	ctx, span := e.tracer.Start(ctx, "stage."+stage.Name(),
		trace.WithAttributes(attribute.String("phase", string(stage.Phase()))))
	defer span.End()

	start := time.Now()
	res := stage.Process(ctx, rc)
	metrics.RecordStage(e.name, stage.Name(), time.Since(start))

	e.logger.Debug("stage finished",
		slog.String("request_id", rc.RequestID),
		slog.String("stage", stage.Name()),
		slog.String("action", string(res.Action)),
	)

	if res.Action == ActionFail && res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

// recoverPanic turns a panic from a stage or the responder into a server
// error. The staged resource is released on this path too.
func (e *Executor) recoverPanic(ctx context.Context, span trace.Span, w http.ResponseWriter, rc *Context, p any) {
	e.logger.Error("pipeline panicked",
		slog.String("request_id", rc.RequestID),
		slog.String("state", string(rc.State())),
		slog.Any("panic", p),
		slog.String("stack", string(debug.Stack())),
	)

	if p == http.ErrAbortHandler {
		_ = rc.releaseResource()
		panic(p)
	}

	if rc.entered(StateErroring) || rc.entered(StateDone) {
		if err := rc.releaseResource(); err != nil {
			e.logger.Warn("failed to release staged resource",
				slog.String("request_id", rc.RequestID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	cause := fmt.Errorf("panic: %v", p)
	span.RecordError(cause)
	e.fail(ctx, span, w, rc, ErrServer(genericServerMessage).WithCause(cause))
}

func (e *Executor) fail(ctx context.Context, span trace.Span, w http.ResponseWriter, rc *Context, err error) {
	rc.enter(StateErroring)
	perr := HandleError(ctx, w, rc, err, e.logger)
	rc.enter(StateDone)

	metrics.RecordPipelineRun(e.name, string(perr.Type))
	span.SetStatus(codes.Error, perr.Message)

	level := slog.LevelInfo
	if perr.HTTPStatusCode() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(ctx, level, "pipeline failed",
		slog.String("request_id", rc.RequestID),
		slog.String("error_type", string(perr.Type)),
		slog.Int("status", perr.HTTPStatusCode()),
		slog.String("error", perr.Message),
	)
}
