package agent

import "errors"

// Failure taxonomy for the conversation runtime. Bridge-boundary
// failures (unknown tool, policy rejection, execution failure, timeout)
// are captured at the executor and surface only as tool-result
// envelopes, so they carry no sentinels here; the errors below are the
// ones that propagate to the session surface.
var (
	ErrModelUnavailable       = errors.New("model unavailable")
	ErrMalformedModelResponse = errors.New("malformed model response")
	ErrSessionNotFound        = errors.New("session not found")
	ErrIterationCap           = errors.New("too many tool round-trips")
)
