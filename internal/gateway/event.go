package gateway

// Event is the canonical, provider-agnostic output unit the gateway exposes
// to its callers. On the wire it serializes to one of:
//
//	{"type":"typing","state":"start"|"end"}
//	{"type":"sentence","text":"..."}
//	{"type":"reasoning","text":"..."}
//	{"type":"error","message":"..."}
//
// Go doesn't have union types, so one struct carries every possible field
// and omitempty keeps the irrelevant ones off the wire. Think of it as a
// discriminated union keyed on Type.
type Event struct {
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// TypingStarted signals that visible content is about to flow. Emitted
// exactly once per session, before the first content event.
func TypingStarted() Event {
	return Event{Type: "typing", State: "start"}
}

// TypingEnded is the terminal signal. Emitted exactly once per session,
// whether the session ended normally or by error; nothing follows it.
func TypingEnded() Event {
	return Event{Type: "typing", State: "end"}
}

// Sentence carries one completed unit of visible text.
func Sentence(text string) Event {
	return Event{Type: "sentence", Text: text}
}

// Reasoning carries one completed unit of the model's thinking text.
func Reasoning(text string) Event {
	return Event{Type: "reasoning", Text: text}
}

// ErrorEvent carries a human-readable failure description. It precedes the
// terminal TypingEnded; a session with an error event and no sentence
// events is a total failure, not an empty success.
func ErrorEvent(message string) Event {
	return Event{Type: "error", Message: message}
}
