// Package video implements the video-retrieval pipeline: it selects stored
// frames for a camera and time range, stages them as numbered JPEG files in a
// scratch directory, assembles them into an MP4 with ffmpeg and streams the
// result back.
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/tjfontaine/camera-gateway/internal/camera"
	"github.com/tjfontaine/camera-gateway/internal/fields"
	"github.com/tjfontaine/camera-gateway/internal/metrics"
	"github.com/tjfontaine/camera-gateway/internal/pipeline"
	"github.com/tjfontaine/camera-gateway/internal/scratch"
	"github.com/tjfontaine/camera-gateway/internal/storage"
)

// PipelineName labels the video-retrieval pipeline in logs and metrics.
const PipelineName = "video"

const (
	framePrefix = "frame"
	frameExt    = "jpg"
	outputName  = "out.mp4"

	// fileTimeLayout formats range bounds in download names.
	fileTimeLayout = "20060102T150405Z"
)

const (
	resourceKey = "video.scratch"
	cursorKey   = "video.cursor"
)

// FrameAssembler encodes the image sequence matching pattern into output.
type FrameAssembler interface {
	Assemble(ctx context.Context, pattern, output string) error
}

// Config configures the video pipeline.
type Config struct {
	Store     storage.FrameStore
	Assembler FrameAssembler
	// ScratchDir is the parent of per-request directories; empty uses os.TempDir().
	ScratchDir string
	Logger     *slog.Logger
}

type retrieval struct {
	store      storage.FrameStore
	assembler  FrameAssembler
	scratchDir string
	logger     *slog.Logger
}

// NewPipeline builds the video-retrieval pipeline.
func NewPipeline(cfg Config) (*pipeline.Executor, error) {
	if cfg.Store == nil {
		return nil, errors.New("video pipeline: frame store is required")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("video pipeline: assembler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := &retrieval{
		store:      cfg.Store,
		assembler:  cfg.Assembler,
		scratchDir: cfg.ScratchDir,
		logger:     logger,
	}

	return pipeline.NewExecutor(pipeline.ExecutorConfig{
		Name: PipelineName,
		Stages: []pipeline.Stage{
			fields.Pattern("camera_id", camera.IDPattern, camera.IDDescription),
			fields.Timestamp("start"),
			fields.Timestamp("end"),
			fields.Before("start", "end"),
			pipeline.NewStage("count-frames", pipeline.PhaseStage, v.countFrames),
			pipeline.NewStage("allocate-scratch", pipeline.PhaseStage, v.allocateScratch),
			pipeline.NewStage("open-cursor", pipeline.PhaseStage, v.openCursor),
			pipeline.NewStage("write-frames", pipeline.PhaseInvoke, v.writeFrames),
			pipeline.NewStage("assemble", pipeline.PhaseInvoke, v.assemble),
		},
		Responder: pipeline.FileResponder{},
		Logger:    logger,
	})
}

func selection(rc *pipeline.Context) (cameraID string, from, to time.Time) {
	return rc.Field("camera_id"), rc.Time("start"), rc.Time("end")
}

func (v *retrieval) countFrames(ctx context.Context, rc *pipeline.Context) pipeline.Result {
	cameraID, from, to := selection(rc)

	count, err := v.store.CountFrames(ctx, cameraID, from, to)
	if err != nil {
		return pipeline.Fail(pipeline.ErrStaging("failed to count frames", err))
	}

	width, err := scratch.PadWidth(count)
	if errors.Is(err, scratch.ErrNoData) {
		return pipeline.Fail(pipeline.ErrNoData(fmt.Sprintf("no data found for camera %s between %s and %s",
			cameraID, from.Format(time.RFC3339), to.Format(time.RFC3339))))
	}
	if err != nil {
		return pipeline.Fail(err)
	}

	rc.SetInt("frame_count", count)
	rc.SetInt("pad_width", width)
	return pipeline.Advance()
}

func (v *retrieval) allocateScratch(_ context.Context, rc *pipeline.Context) pipeline.Result {
	cameraID, from, to := selection(rc)
	key := cameraID + "_" + strconv.FormatInt(from.Unix(), 10) + "_" + strconv.FormatInt(to.Unix(), 10)

	res, err := scratch.Allocate(v.scratchDir, key)
	if err != nil {
		return pipeline.Fail(pipeline.ErrStaging("failed to allocate scratch directory", err))
	}
	rc.Resource = res
	rc.Set(resourceKey, res)
	return pipeline.Advance()
}

func (v *retrieval) openCursor(ctx context.Context, rc *pipeline.Context) pipeline.Result {
	res := resource(rc)
	cameraID, from, to := selection(rc)

	cur, err := v.store.OpenFrames(ctx, cameraID, from, to)
	if err != nil {
		return pipeline.Fail(pipeline.ErrStaging("failed to open frame cursor", err))
	}
	res.AddCloser(cur)
	rc.Set(cursorKey, cur)
	return pipeline.Advance()
}

func (v *retrieval) writeFrames(ctx context.Context, rc *pipeline.Context) pipeline.Result {
	res := resource(rc)
	cur := cursor(rc)
	width := rc.Int("pad_width")

	index := 0
	for cur.Next() {
		if err := ctx.Err(); err != nil {
			return pipeline.Fail(err)
		}
		path := res.Path(scratch.FrameName(framePrefix, index, width, frameExt))
		if err := os.WriteFile(path, cur.Frame().Data, 0o600); err != nil {
			return pipeline.Fail(pipeline.ErrStaging("failed to write frame", err))
		}
		res.Track(path)
		index++
	}
	if err := cur.Err(); err != nil {
		return pipeline.Fail(pipeline.ErrStaging("failed to read frames", err))
	}
	if index == 0 {
		cameraID, _, _ := selection(rc)
		return pipeline.Fail(pipeline.ErrNoData("no data found for camera " + cameraID))
	}

	v.logger.DebugContext(ctx, "frames staged",
		slog.String("request_id", rc.RequestID),
		slog.Int("frames", index),
		slog.String("dir", res.Dir()),
	)
	return pipeline.Advance()
}

func (v *retrieval) assemble(ctx context.Context, rc *pipeline.Context) pipeline.Result {
	res := resource(rc)
	cameraID, from, to := selection(rc)

	pattern := res.Path(scratch.FramePattern(framePrefix, rc.Int("pad_width"), frameExt))
	output := res.Path(outputName)

	err := v.assembler.Assemble(ctx, pattern, output)
	metrics.RecordRemoteOperation(PipelineName, err)
	if err != nil {
		return pipeline.Fail(pipeline.ErrRemote("video assembly failed", err))
	}
	res.Track(output)

	rc.Response = pipeline.Response{
		StatusCode:  http.StatusOK,
		ContentType: "video/mp4",
		FilePath:    output,
		FileName:    DownloadName(cameraID, from, to),
	}
	return pipeline.Advance()
}

// DownloadName returns the attachment name for a camera and range.
func DownloadName(cameraID string, from, to time.Time) string {
	return fmt.Sprintf("%s_%s_%s.mp4", cameraID, from.UTC().Format(fileTimeLayout), to.UTC().Format(fileTimeLayout))
}

func resource(rc *pipeline.Context) *scratch.Resource {
	v, _ := rc.Value(resourceKey)
	res, _ := v.(*scratch.Resource)
	return res
}

func cursor(rc *pipeline.Context) storage.FrameCursor {
	v, _ := rc.Value(cursorKey)
	cur, _ := v.(storage.FrameCursor)
	return cur
}
