// Package bridge defines the messages exchanged between the host page and the
// embedded chat document.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Action names as they appear on the wire.
const (
	ActionClose       = "close"
	ActionResize      = "resize"
	ActionSendMessage = "sendMessage"
)

var (
	// ErrUnknownAction is returned for an action outside the contract.
	ErrUnknownAction = errors.New("bridge: unknown action")
	// ErrMalformed is returned when the payload does not match its action.
	ErrMalformed = errors.New("bridge: malformed message")
)

// Message is one of Close, Resize or SendMessage.
type Message interface {
	Action() string
	isMessage()
}

// Close asks the host to close the widget.
type Close struct{}

// Resize asks the host to set the frame size in pixels. A zero dimension is
// left unchanged.
type Resize struct {
	Width  int
	Height int
}

// SendMessage injects text as a user message in the frame.
type SendMessage struct {
	Text string
}

func (Close) Action() string       { return ActionClose }
func (Resize) Action() string      { return ActionResize }
func (SendMessage) Action() string { return ActionSendMessage }

func (Close) isMessage()       {}
func (Resize) isMessage()      {}
func (SendMessage) isMessage() {}

type envelope struct {
	Action  string `json:"action"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Message string `json:"message,omitempty"`
}

// Encode serialises m in its wire shape.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case Close:
		return json.Marshal(envelope{Action: ActionClose})
	case Resize:
		return json.Marshal(envelope{Action: ActionResize, Width: v.Width, Height: v.Height})
	case SendMessage:
		return json.Marshal(envelope{Action: ActionSendMessage, Message: v.Text})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, m)
	}
}

// Decode validates raw JSON from the other side of the frame boundary.
func Decode(raw []byte) (Message, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return DecodeMap(data)
}

// DecodeMap validates an already-parsed payload.
func DecodeMap(data map[string]any) (Message, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	action, ok := data["action"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing action", ErrMalformed)
	}

	switch action {
	case ActionClose:
		return Close{}, nil
	case ActionResize:
		width, err := dimension(data, "width")
		if err != nil {
			return nil, err
		}
		height, err := dimension(data, "height")
		if err != nil {
			return nil, err
		}
		return Resize{Width: width, Height: height}, nil
	case ActionSendMessage:
		text, ok := data["message"].(string)
		if !ok {
			// older embeds sent the body as "text"
			text, ok = data["text"].(string)
		}
		if !ok {
			return nil, fmt.Errorf("%w: sendMessage requires a message string", ErrMalformed)
		}
		return SendMessage{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func dimension(data map[string]any, key string) (int, error) {
	raw, present := data[key]
	if !present || raw == nil {
		return 0, nil
	}
	n, ok := raw.(float64)
	if !ok || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: resize requires a non-negative integer %s", ErrMalformed, key)
	}
	return int(n), nil
}

// OriginPolicy decides which sender origins are trusted. An empty allow-list
// accepts every origin.
type OriginPolicy struct {
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from exact origins such as
// "https://shop.example.com". Blank entries and "*" are ignored.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || o == "*" {
			continue
		}
		if p.allowed == nil {
			p.allowed = make(map[string]struct{})
		}
		p.allowed[strings.ToLower(o)] = struct{}{}
	}
	return p
}

// Permissive reports whether every origin is accepted.
func (p OriginPolicy) Permissive() bool {
	return len(p.allowed) == 0
}

func (p OriginPolicy) Allows(origin string) bool {
	if p.Permissive() {
		return true
	}
	_, ok := p.allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}
