package fields

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/camera-gateway/internal/pipeline"
)

func run(t *testing.T, stage pipeline.Stage, query url.Values) (*pipeline.Context, *pipeline.Error) {
	t.Helper()
	rc := pipeline.NewContext("req-1", query)
	res := stage.Process(context.Background(), rc)
	switch res.Action {
	case pipeline.ActionAdvance:
		return rc, nil
	case pipeline.ActionFail:
		return rc, pipeline.ToError(res.Err)
	default:
		t.Fatalf("unexpected action %q", res.Action)
		return nil, nil
	}
}

func TestRequired(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    string
		wantErr bool
	}{
		{"present", url.Values{"camera_id": {"cam1"}}, "cam1", false},
		{"trimmed", url.Values{"camera_id": {"  cam1 "}}, "cam1", false},
		{"absent", url.Values{}, "", true},
		{"empty", url.Values{"camera_id": {""}}, "", true},
		{"blank", url.Values{"camera_id": {"   "}}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := run(t, Required("camera_id"), tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if err.Type != pipeline.ErrorTypeValidation || err.Field != "camera_id" {
					t.Errorf("err = %+v", err)
				}
				if err.Message != "camera_id is required" {
					t.Errorf("Message = %q", err.Message)
				}
				return
			}
			if got := rc.Field("camera_id"); got != tt.want {
				t.Errorf("Field() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPattern(t *testing.T) {
	re := regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	stage := Pattern("camera_id", re, "1-64 letters, digits, '-' or '_'")

	if _, err := run(t, stage, url.Values{"camera_id": {"north-gate_01"}}); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}

	_, err := run(t, stage, url.Values{"camera_id": {"../etc"}})
	if err == nil {
		t.Fatal("expected error for invalid id")
	}
	if !strings.Contains(err.Message, "camera_id") {
		t.Errorf("Message = %q, want field name", err.Message)
	}

	_, err = run(t, stage, url.Values{})
	if err == nil || err.Message != "camera_id is required" {
		t.Errorf("missing id err = %v", err)
	}
}

func TestEnum_Canonicalizes(t *testing.T) {
	tests := []struct {
		name    string
		stage   pipeline.Stage
		field   string
		input   string
		want    string
		wantErr bool
	}{
		{"upper action", Enum("action", "start", "stop"), "action", "START", "start", false},
		{"exact action", Enum("action", "start", "stop"), "action", "stop", "stop", false},
		{"unknown action", Enum("action", "start", "stop"), "action", "pause", "", true},
		{"lower direction", Enum("direction", "Up", "Down", "LeftUp"), "direction", "up", "Up", false},
		{"mixed direction", Enum("direction", "Up", "Down", "LeftUp"), "direction", "LEFTup", "LeftUp", false},
		{"empty direction", Enum("direction", "Up", "Down"), "direction", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := run(t, tt.stage, url.Values{tt.field: {tt.input}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if err.Field != tt.field {
					t.Errorf("Field = %q, want %q", err.Field, tt.field)
				}
				return
			}
			if got := rc.Field(tt.field); got != tt.want {
				t.Errorf("Field() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIntRange(t *testing.T) {
	stage := IntRange("velocity", 1, 8)

	for _, v := range []string{"1", "5", "8", " 3 "} {
		rc, err := run(t, stage, url.Values{"velocity": {v}})
		if err != nil {
			t.Errorf("velocity=%q rejected: %v", v, err)
			continue
		}
		if got := rc.Int("velocity"); got < 1 || got > 8 {
			t.Errorf("velocity=%q stored %d", v, got)
		}
	}

	for _, v := range []string{"0", "9", "-1", "abc", "5.5"} {
		_, err := run(t, stage, url.Values{"velocity": {v}})
		if err == nil {
			t.Errorf("velocity=%q accepted", v)
			continue
		}
		if err.HTTPStatusCode() != 400 {
			t.Errorf("velocity=%q status = %d, want 400", v, err.HTTPStatusCode())
		}
		if err.Message != "velocity must be between 1 and 8" {
			t.Errorf("velocity=%q message = %q", v, err.Message)
		}
	}

	_, err := run(t, stage, url.Values{"velocity": {""}})
	if err == nil || err.Message != "velocity is required" {
		t.Errorf("empty velocity err = %v", err)
	}
}

func TestTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"rfc3339 utc", "2024-03-01T12:00:00Z", false},
		{"rfc3339 offset", "2024-03-01T14:00:00+02:00", false},
		{"unix seconds", "1709294400", false},
		{"garbage", "yesterday", true},
		{"missing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := run(t, Timestamp("start"), url.Values{"start": {tt.input}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			got := rc.Time("start")
			if !got.Equal(want) || got.Location() != time.UTC {
				t.Errorf("Time() = %v, want %v", got, want)
			}
		})
	}
}

func TestBefore(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name       string
		start, end time.Time
		wantErr    bool
	}{
		{"ordered", early, late, false},
		{"equal", early, early, true},
		{"reversed", late, early, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := pipeline.NewContext("req-1", nil)
			rc.SetTime("start", tt.start)
			rc.SetTime("end", tt.end)

			res := Before("start", "end").Process(context.Background(), rc)
			if gotErr := res.Action == pipeline.ActionFail; gotErr != tt.wantErr {
				t.Errorf("Action = %v, wantErr %v", res.Action, tt.wantErr)
			}
		})
	}
}

func TestStagesRunInValidatingPhase(t *testing.T) {
	stages := []pipeline.Stage{
		Required("a"),
		Pattern("b", regexp.MustCompile(`.`), "anything"),
		Enum("c", "x"),
		IntRange("d", 0, 1),
		Timestamp("e"),
		Before("e", "f"),
	}
	for _, s := range stages {
		if s.Phase() != pipeline.PhaseValidate {
			t.Errorf("%s phase = %q", s.Name(), s.Phase())
		}
	}
}
