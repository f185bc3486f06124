package storage

import "time"

// Action log statuses as persisted. Mirrors the pipeline's terminal states.
const (
	StatusExecuted = "executed"
	StatusDenied   = "denied"
	StatusFailed   = "failed"
)

// ActionEvent is one terminal action outcome to be persisted to the
// append-only action log. Result fields carry the reduced {success, message}
// view only — never the handler's arbitrary data payload, to bound log size.
type ActionEvent struct {
	EventID       string
	UserID        string
	ActionID      string // the tool_call_id
	ToolName      string
	Category      string
	ParamsJSON    string
	Status        string
	ResultSuccess bool
	ResultMessage string
	Timestamp     time.Time
}

// EventWriter is the interface for writing action log events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ActionEvent)
	Close()
}
