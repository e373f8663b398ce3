// Package pipeline provides the request pipeline execution engine.
//
// A pipeline is an ordered list of stages that share one request-scoped
// Context. Each stage either advances the request to the next stage or fails
// it, in which case the uniform error handler produces the response. A
// pipeline never branches and never revisits a stage.
//
// # Lifecycle
//
//	start -> validating -> staging -> invoking -> responding -> done
//	                \_________\__________\___________\-> erroring -> done
//
// Stages declare the phase they run in (validating, staging or invoking); the
// executor orders them by phase and records every state it enters on the
// Context. After the last stage the Responder writes the success response.
//
// # Staged resources
//
// A stage may attach a Releaser (for example a scratch directory) to the
// Context. The executor releases it exactly once: after the response has been
// transmitted on success, or from the error handler on failure. Release errors
// are logged and never replace the original error.
//
// # Errors
//
// Stages fail with *Error values (validation, no_data, staging, remote,
// server). Any other error is reported as a 500 server error carrying the
// error's own text.
package pipeline
