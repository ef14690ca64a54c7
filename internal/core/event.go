package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage notifies clients about a message appended to a group they joined.
	EventNewMessage EventKind = iota
	// EventError notifies the sending client about a failed command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	GroupID int64
	Message Message
	Error   *CoreError
}

func errorEvent(groupID int64, err *CoreError) *Event {
	return &Event{Kind: EventError, GroupID: groupID, Error: err}
}
