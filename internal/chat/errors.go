package chat

import "errors"

// Sentinel errors for model-facing failures. Callers classify with
// errors.Is; wrapped messages carry the operation context.
var (
	// ErrUnavailable indicates the completion backend could not be reached
	// or is not configured.
	ErrUnavailable = errors.New("completion service unavailable")

	// ErrTimeout indicates a completion call exceeded its deadline.
	ErrTimeout = errors.New("completion timeout")

	// ErrMalformedResponse indicates the backend answered but the payload
	// was unusable (empty or whitespace-only text).
	ErrMalformedResponse = errors.New("malformed completion response")
)

// FallbackResponse is returned by the generator when the backend produces
// an empty payload. It stands in for a real answer so the conversation can
// continue instead of surfacing a blank turn.
const FallbackResponse = "Hmm, mujhe samajh nahi aaya. Phir se pooch na?"

// FailureReply is what the pipeline hands back when a turn fails partway.
// The user's input is preserved in the session; no assistant turn is
// recorded for the failed exchange.
const FailureReply = "Sorry yaar, kuch gadbad ho gayi. Thodi der baad try karna."
