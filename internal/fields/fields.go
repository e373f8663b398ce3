// Package fields provides the validating stages that check and normalize
// request inputs before any work is done.
//
// Every validator reads its raw value from the request query, treats an empty
// string as missing and, on success, stores the normalized value on the
// pipeline Context under the same name.
package fields

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tjfontaine/camera-gateway/internal/pipeline"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func missing(name string) *pipeline.Error {
	return pipeline.ErrValidation(name, fmt.Sprintf("%s is required", name))
}

// required returns the trimmed raw value or a validation error if it is empty.
func required(rc *pipeline.Context, name string) (string, *pipeline.Error) {
	raw := rc.Raw(name)
	if err := getValidator().Var(raw, "required"); err != nil {
		return "", missing(name)
	}
	return raw, nil
}

// Required checks that name is present and non-empty.
func Required(name string) pipeline.Stage {
	return pipeline.NewStage("require-"+name, pipeline.PhaseValidate, func(_ context.Context, rc *pipeline.Context) pipeline.Result {
		v, verr := required(rc, name)
		if verr != nil {
			return pipeline.Fail(verr)
		}
		rc.SetField(name, v)
		return pipeline.Advance()
	})
}

// Pattern checks that name is present and matches re. description is used in
// the error message, e.g. "1-64 letters, digits, '-' or '_'".
func Pattern(name string, re *regexp.Regexp, description string) pipeline.Stage {
	return pipeline.NewStage("pattern-"+name, pipeline.PhaseValidate, func(_ context.Context, rc *pipeline.Context) pipeline.Result {
		v, verr := required(rc, name)
		if verr != nil {
			return pipeline.Fail(verr)
		}
		if !re.MatchString(v) {
			return pipeline.Fail(pipeline.ErrValidation(name, fmt.Sprintf("%s must be %s", name, description)))
		}
		rc.SetField(name, v)
		return pipeline.Advance()
	})
}

// Enum checks that name case-insensitively equals one of allowed and stores
// the canonical spelling from allowed.
func Enum(name string, allowed ...string) pipeline.Stage {
	canonical := make(map[string]string, len(allowed))
	for _, a := range allowed {
		canonical[strings.ToLower(a)] = a
	}
	expected := strings.Join(allowed, ", ")

	return pipeline.NewStage("enum-"+name, pipeline.PhaseValidate, func(_ context.Context, rc *pipeline.Context) pipeline.Result {
		v, verr := required(rc, name)
		if verr != nil {
			return pipeline.Fail(verr)
		}
		c, ok := canonical[strings.ToLower(v)]
		if !ok {
			return pipeline.Fail(pipeline.ErrValidation(name, fmt.Sprintf("%s must be one of: %s", name, expected)))
		}
		rc.SetField(name, c)
		return pipeline.Advance()
	})
}

// IntRange checks that name is an integer within [lo, hi].
func IntRange(name string, lo, hi int) pipeline.Stage {
	tag := fmt.Sprintf("min=%d,max=%d", lo, hi)

	return pipeline.NewStage("range-"+name, pipeline.PhaseValidate, func(_ context.Context, rc *pipeline.Context) pipeline.Result {
		v, verr := required(rc, name)
		if verr != nil {
			return pipeline.Fail(verr)
		}
		rangeErr := pipeline.ErrValidation(name, fmt.Sprintf("%s must be between %d and %d", name, lo, hi))

		n, err := strconv.Atoi(v)
		if err != nil {
			return pipeline.Fail(rangeErr.WithCause(err))
		}
		if err := getValidator().Var(n, tag); err != nil {
			return pipeline.Fail(rangeErr.WithCause(err))
		}
		rc.SetInt(name, n)
		return pipeline.Advance()
	})
}

// Timestamp checks that name is an RFC 3339 timestamp or Unix seconds and
// stores it in UTC.
func Timestamp(name string) pipeline.Stage {
	return pipeline.NewStage("timestamp-"+name, pipeline.PhaseValidate, func(_ context.Context, rc *pipeline.Context) pipeline.Result {
		v, verr := required(rc, name)
		if verr != nil {
			return pipeline.Fail(verr)
		}
		t, err := ParseTime(v)
		if err != nil {
			return pipeline.Fail(pipeline.ErrValidation(name,
				fmt.Sprintf("%s must be an RFC 3339 timestamp or Unix seconds", name)).WithCause(err))
		}
		rc.SetTime(name, t)
		return pipeline.Advance()
	})
}

// Before checks that the validated time from is strictly earlier than to.
// It must run after the Timestamp stages for both fields.
func Before(from, to string) pipeline.Stage {
	return pipeline.NewStage("before-"+from+"-"+to, pipeline.PhaseValidate, func(_ context.Context, rc *pipeline.Context) pipeline.Result {
		if !rc.Time(from).Before(rc.Time(to)) {
			return pipeline.Fail(pipeline.ErrValidation(to, fmt.Sprintf("%s must be after %s", to, from)))
		}
		return pipeline.Advance()
	})
}

// ParseTime parses an RFC 3339 timestamp or a count of Unix seconds.
func ParseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
