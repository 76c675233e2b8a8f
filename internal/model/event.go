package model

// Event types understood on the wire. Client to server: join, message,
// typing. Server to client: the rest.
const (
	EventJoin         = "join"
	EventMessage      = "message"
	EventTyping       = "typing"
	EventJoinSuccess  = "join_success"
	EventJoinError    = "join_error"
	EventHistory      = "history"
	EventNotification = "notification"
	EventUserList     = "user_list"
)

// Event is the bidirectional wire envelope. Only the fields relevant
// to a given type are populated; the rest are omitted from the JSON.
type Event struct {
	Type     string    `json:"type"`
	Username string    `json:"username,omitempty"`
	Text     string    `json:"text,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Users    []string  `json:"users,omitempty"`
}

// JoinSuccess confirms a claimed username to the joining client.
func JoinSuccess(username string) Event {
	return Event{Type: EventJoinSuccess, Username: username}
}

// JoinError rejects a join attempt with a human-readable reason.
func JoinError(reason string) Event {
	return Event{Type: EventJoinError, Text: reason}
}

// History replays retained messages, oldest first, to one client.
func History(messages []Message) Event {
	return Event{Type: EventHistory, Messages: messages}
}

// Chat wraps a broadcast chat message.
func Chat(msg Message) Event {
	return Event{Type: EventMessage, Message: &msg}
}

// Notification carries a join/leave/system notice.
func Notification(text string) Event {
	return Event{Type: EventNotification, Text: text}
}

// UserList carries a full presence snapshot.
func UserList(users []string) Event {
	return Event{Type: EventUserList, Users: users}
}

// Typing signals that username is composing a message.
func Typing(username string) Event {
	return Event{Type: EventTyping, Username: username}
}
