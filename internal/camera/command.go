package camera

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Actions accepted by the controller.
var Actions = []string{"start", "stop"}

// Directions accepted by the controller, in the controller's spelling.
var Directions = []string{
	"Up", "Down", "Left", "Right",
	"LeftUp", "RightUp", "LeftDown", "RightDown",
	"ZoomTele", "ZoomWide",
	"FocusNear", "FocusFar",
}

// IDPattern matches valid camera ids. Ids become the controller channel and
// scratch directory names, so they are restricted to a filesystem-safe set.
var IDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IDDescription describes IDPattern in validation messages.
const IDDescription = "1-64 letters, digits, '-' or '_'"

const (
	MinVelocity = 1
	MaxVelocity = 8
)

// Command is a validated PTZ command.
type Command struct {
	CameraID  string
	Action    string
	Direction string
	Velocity  int
}

// queryKeys is the parameter order documented for the controller.
var queryKeys = []string{"action", "channel", "code", "arg1", "arg2", "arg3"}

// Query returns the controller query parameters for c. The controller takes
// the speed in arg2; arg1 and arg3 are unused for directional moves.
func (c Command) Query() url.Values {
	q := url.Values{}
	q.Set("action", c.Action)
	q.Set("channel", c.CameraID)
	q.Set("code", c.Direction)
	q.Set("arg1", "0")
	q.Set("arg2", strconv.Itoa(c.Velocity))
	q.Set("arg3", "0")
	return q
}

// Encode returns the query string in the controller's parameter order.
func (c Command) Encode() string {
	q := c.Query()
	parts := make([]string, 0, len(queryKeys))
	for _, k := range queryKeys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(q.Get(k)))
	}
	return strings.Join(parts, "&")
}
