package logging

import "time"

// #region entry

// Event types recorded in the decision log.
const (
	EventDecide        = "decide"
	EventFeedback      = "feedback"
	EventTraceComplete = "trace_complete"
)

// Entry is a single row in the decision_log table: what the router did,
// on which bookkeeping track, and why.
type Entry struct {
	EventType  string   // decide | feedback | trace_complete
	Track      string   // sync | async | trace
	Identifier string   // event or trace ID, empty on the sync track
	Option     string   // chosen option name
	Arm        int      // chosen option index
	Reward     *float64 // nil for decide events
	StateJSON  string   // JSON of the encoded state value, decide events only
	Reason     string
	CreatedAt  time.Time
}

// #endregion entry
