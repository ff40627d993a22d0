package flow

import (
	"io"
	"time"
)

// Screen is the single visible step of the frame flow.
type Screen string

const (
	ScreenRegistration Screen = "registration"
	ScreenOTP          Screen = "otp"
	ScreenChat         Screen = "chat"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Message is one chat log entry. Entries are never modified after append.
type Message struct {
	ID        string      `json:"id"`
	Text      string      `json:"text,omitempty"`
	Sender    Sender      `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
	ImageURL  string      `json:"imageUrl,omitempty"`
	ImageName string      `json:"imageName,omitempty"`
}

// User is the registered visitor.
type User struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject,omitempty"`
}

// Registration is the raw form input.
type Registration struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
}

// Attachment is a user-selected file. Content is read off the loop.
type Attachment struct {
	Name     string
	MIMEType string
	Size     int64
	Content  io.Reader
}

// Form names a submit affordance on the surface.
type Form string

const (
	FormRegistration Form = "registration"
	FormOTP          Form = "otp"
)

type NoticeKind string

const (
	NoticeError NoticeKind = "error"
	NoticeInfo  NoticeKind = "info"
)

// Notice is a user-visible message outside the chat log.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}
