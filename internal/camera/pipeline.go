// Package camera implements the camera-control pipeline: it validates a PTZ
// command and forwards it to the camera controller as a single HTTP GET.
package camera

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/camera-gateway/internal/fields"
	"github.com/tjfontaine/camera-gateway/internal/pipeline"
)

// PipelineName labels the camera-control pipeline in logs and metrics.
const PipelineName = "camera"

// SuccessBody is the response body of an accepted command.
const SuccessBody = "Done!"

const commandKey = "camera.command"

// Sender delivers a command to the controller.
type Sender interface {
	Send(ctx context.Context, cmd Command) error
}

// NewPipeline builds the camera-control pipeline around sender.
func NewPipeline(sender Sender, logger *slog.Logger) (*pipeline.Executor, error) {
	if sender == nil {
		return nil, errors.New("camera pipeline: sender is required")
	}

	return pipeline.NewExecutor(pipeline.ExecutorConfig{
		Name: PipelineName,
		Stages: []pipeline.Stage{
			fields.Pattern("camera_id", IDPattern, IDDescription),
			fields.Enum("action", Actions...),
			fields.Enum("direction", Directions...),
			fields.IntRange("velocity", MinVelocity, MaxVelocity),
			pipeline.NewStage("build-command", pipeline.PhaseStage, buildCommand),
			pipeline.NewStage("send-command", pipeline.PhaseInvoke, sendCommand(sender)),
		},
		Responder: pipeline.TextResponder{},
		Logger:    logger,
	})
}

func buildCommand(_ context.Context, rc *pipeline.Context) pipeline.Result {
	rc.Set(commandKey, Command{
		CameraID:  rc.Field("camera_id"),
		Action:    rc.Field("action"),
		Direction: rc.Field("direction"),
		Velocity:  rc.Int("velocity"),
	})
	return pipeline.Advance()
}

func sendCommand(sender Sender) pipeline.StageFunc {
	return func(ctx context.Context, rc *pipeline.Context) pipeline.Result {
		v, ok := rc.Value(commandKey)
		if !ok {
			return pipeline.Fail(pipeline.ErrServer("camera command was not built"))
		}
		cmd := v.(Command)

		if err := sender.Send(ctx, cmd); err != nil {
			var remote *RemoteError
			if errors.As(err, &remote) {
				return pipeline.Fail(pipeline.ErrRemote("camera controller rejected command", err))
			}
			return pipeline.Fail(pipeline.ErrRemote("camera controller unreachable", err))
		}

		rc.Response = pipeline.Response{
			StatusCode:  http.StatusOK,
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(SuccessBody),
		}
		return pipeline.Advance()
	}
}
