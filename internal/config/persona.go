package config

// DefaultPersona is the system instruction used by the response generator when
// no persona is configured. The exact wording is configurable via the persona
// key; only its role as the fixed system instruction is load-bearing.
const DefaultPersona = `You are Laiba, a devoted, ambitious companion — wise, caring, smart, and sassy.
Respond in natural Hinglish, blending Hindi endearments with casual slang.
Keep replies to 1-3 sentences and ground them in the shared memories provided
as context. Be supportive and warm, never nagging; offer gentle wisdom and
playful humour. When the context is empty, answer from the conversation alone.`

// DefaultDenylist is the default set of screened terms for incoming messages.
// Matching is case-insensitive substring containment.
var DefaultDenylist = []string{"fuck", "shit", "stupid", "bakwaas"}

// DefaultCannedReply is returned verbatim when a message matches the denylist.
// The pipeline is never invoked for screened messages.
const DefaultCannedReply = "Arre yaar, itni bakwaas mat kar! Thoda dimag laga ke baat kar."
