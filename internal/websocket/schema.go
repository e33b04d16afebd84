package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventTick      Event = "tick"
	EventExpired   Event = "expired"
	EventSubmitted Event = "submitted"
	// EventClockLost ends a stream whose anchor vanished without a submission.
	EventClockLost Event = "clock_lost"
	EventPong      Event = "pong"
)

// TickResponse reports the countdown once per second.
type TickResponse struct {
	Event            Event `json:"event"`
	Phase            int   `json:"phase"`
	RemainingSeconds int   `json:"remaining_seconds"`
	DurationSeconds  int   `json:"duration_seconds"`
}

// StatusResponse ends the stream with a terminal event.
type StatusResponse struct {
	Event Event `json:"event"`
	Phase int   `json:"phase"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
