package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage appends a message to a group and broadcasts it.
	CommandSendMessage CommandKind = iota
	// CommandJoinGroup subscribes the connection to a group's room.
	CommandJoinGroup
	// CommandLeaveGroup unsubscribes the connection from a group's room.
	CommandLeaveGroup
)

func (k CommandKind) String() string {
	switch k {
	case CommandSendMessage:
		return "send_message"
	case CommandJoinGroup:
		return "join_group"
	case CommandLeaveGroup:
		return "leave_group"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	GroupID int64
	Text    string
}
