package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tjfontaine/camera-gateway/internal/server"
)

// Responder writes the success response once every stage has advanced.
type Responder interface {
	Respond(ctx context.Context, w http.ResponseWriter, rc *Context) error
}

// ResponderFunc adapts a function into a Responder.
type ResponderFunc func(ctx context.Context, w http.ResponseWriter, rc *Context) error

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, w http.ResponseWriter, rc *Context) error {
	return f(ctx, w, rc)
}

// TextResponder writes Context.Response.Body.
type TextResponder struct{}

// Respond implements Responder.
func (TextResponder) Respond(_ context.Context, w http.ResponseWriter, rc *Context) error {
	contentType := rc.Response.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	status := rc.Response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, err := w.Write(rc.Response.Body)
	return err
}

// FileResponder streams the file at Context.Response.FilePath as a download.
type FileResponder struct{}

// Respond implements Responder.
func (FileResponder) Respond(_ context.Context, w http.ResponseWriter, rc *Context) error {
	f, err := os.Open(rc.Response.FilePath)
	if err != nil {
		return fmt.Errorf("open response file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat response file: %w", err)
	}

	contentType := rc.Response.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if rc.Response.FileName != "" {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rc.Response.FileName))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("send response file: %w", err)
	}
	return nil
}

// errorBody is the JSON envelope for error responses.
type errorBody struct {
	Error *Error `json:"error"`
}

// HandleError is the uniform error handler. It converts err, releases any
// staged resource (swallowing release failures) and writes the error response
// unless the response has already started.
func HandleError(ctx context.Context, w http.ResponseWriter, rc *Context, err error, logger *slog.Logger) *Error {
	if logger == nil {
		logger = slog.Default()
	}

	perr := ToError(err)
	rc.Err = perr

	if rerr := rc.releaseResource(); rerr != nil {
		logger.Warn("failed to release staged resource",
			slog.String("request_id", rc.RequestID),
			slog.String("error", rerr.Error()),
		)
	}

	server.AddError(ctx, perr)

	if tw, ok := w.(*trackingWriter); ok && tw.wroteHeader {
		logger.Warn("response already started, dropping error response",
			slog.String("request_id", rc.RequestID),
			slog.String("error", perr.Error()),
		)
		return perr
	}

	body, merr := json.Marshal(errorBody{Error: perr})
	if merr != nil {
		http.Error(w, perr.Message, perr.HTTPStatusCode())
		return perr
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(perr.HTTPStatusCode())
	_, _ = w.Write(body)
	return perr
}

// trackingWriter records whether the response has started.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (tw *trackingWriter) WriteHeader(code int) {
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

// Flush forwards Flush to the underlying ResponseWriter if it supports http.Flusher.
func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
