package pipeline

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Releaser is a staged resource that must be released when the request ends.
// Release must be safe to call more than once.
type Releaser interface {
	Release() error
}

// Response describes the success response prepared by the stages.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte

	// FilePath and FileName are used by FileResponder.
	FilePath string
	FileName string
}

// Context is the request-scoped state threaded through every stage.
// It is owned by a single in-flight request and never shared.
type Context struct {
	RequestID string
	Query     url.Values

	// Resource is the staged resource acquired by a staging stage, if any.
	Resource Releaser
	// Err is the terminal error, set by the error handler.
	Err *Error
	// Response is filled in by stages for the responder.
	Response Response

	fields map[string]string
	ints   map[string]int
	times  map[string]time.Time
	values map[string]any

	states []State
}

// NewContext creates the context for one request.
func NewContext(requestID string, query url.Values) *Context {
	if query == nil {
		query = url.Values{}
	}
	return &Context{
		RequestID: requestID,
		Query:     query,
		fields:    make(map[string]string),
		ints:      make(map[string]int),
		times:     make(map[string]time.Time),
		values:    make(map[string]any),
	}
}

// Raw returns the trimmed raw input value for name.
func (c *Context) Raw(name string) string {
	return strings.TrimSpace(c.Query.Get(name))
}

// SetField stores a validated, normalized string field.
func (c *Context) SetField(name, value string) {
	c.fields[name] = value
}

// Field returns a validated string field.
func (c *Context) Field(name string) string {
	return c.fields[name]
}

// Fields returns a copy of all validated string fields.
func (c *Context) Fields() map[string]string {
	out := make(map[string]string, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// SetInt stores a validated integer field.
func (c *Context) SetInt(name string, value int) {
	c.ints[name] = value
}

// Int returns a validated integer field.
func (c *Context) Int(name string) int {
	return c.ints[name]
}

// SetTime stores a validated time field.
func (c *Context) SetTime(name string, value time.Time) {
	c.times[name] = value
}

// Time returns a validated time field.
func (c *Context) Time(name string) time.Time {
	return c.times[name]
}

// Set stores arbitrary working state for later stages.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Value returns working state stored with Set.
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	if len(c.states) == 0 {
		return ""
	}
	return c.states[len(c.states)-1]
}

// States returns the lifecycle states entered so far, in order.
func (c *Context) States() []State {
	out := make([]State, len(c.states))
	copy(out, c.states)
	return out
}

func (c *Context) entered(s State) bool {
	for _, prev := range c.states {
		if prev == s {
			return true
		}
	}
	return false
}

func (c *Context) enter(s State) {
	for _, prev := range c.states {
		if prev == s {
			panic(fmt.Sprintf("pipeline: state %q entered twice", s))
		}
	}
	c.states = append(c.states, s)
}

// releaseResource releases the staged resource at most once. Panics from the
// releaser are converted to errors.
func (c *Context) releaseResource() (err error) {
	r := c.Resource
	if r == nil {
		return nil
	}
	c.Resource = nil

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("release panicked: %v", p)
		}
	}()
	return r.Release()
}
