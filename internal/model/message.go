// Package model defines the wire data structures.
package model

import "time"

// MaxMessageLen is the longest message text the server accepts,
// counted in characters, not bytes.
const MaxMessageLen = 1000

// Message holds one chat message as stored and broadcast. The
// timestamp is assigned server-side on receipt; clients never
// supply it.
type Message struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewMessage stamps a message with the current server time in
// 24-hour HH:MM form, the format the client renders verbatim.
func NewMessage(user, text string) Message {
	return Message{
		User:      user,
		Text:      text,
		Timestamp: time.Now().Format("15:04"),
	}
}
