package webchat

import (
	"encoding/json"
	"sync"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
)

// InboundEvent is what the frame document sends.
type InboundEvent struct {
	Type string `json:"type"` // "register", "digit", "backspace", "paste", "submit_otp", "resend", "send", "attachment", "close", "host", "ping"

	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`

	Slot  int    `json:"slot,omitempty"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`

	FileName string `json:"file_name,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"` // base64 file content

	// Origin and Payload carry a message the embedding page posted to the frame.
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEvent is what we render to the frame document.
type OutboundEvent struct {
	Type string `json:"type"` // "session", "screen", "message", "typing", "submitting", "notice", "focus", "slot", "countdown", "masked_phone", "theme", "hide", "bridge", "error", "pong"

	SessionID string        `json:"session_id,omitempty"`
	Token     string        `json:"token,omitempty"`
	Screen    flow.Screen   `json:"screen,omitempty"`
	Message   *flow.Message `json:"message,omitempty"`
	Form      flow.Form     `json:"form,omitempty"`
	Active    *bool         `json:"active,omitempty"`

	Kind  flow.NoticeKind `json:"kind,omitempty"`
	Text  string          `json:"text,omitempty"`
	Slot  int             `json:"slot,omitempty"`
	Value *string         `json:"value,omitempty"`

	Seconds *int   `json:"seconds,omitempty"`
	Theme   *Theme `json:"theme,omitempty"`

	Bridge json.RawMessage `json:"bridge,omitempty"`
}

// Theme is the rendered palette for the frame stylesheet.
type Theme struct {
	Primary   string `json:"primary"`
	Light     string `json:"light"`
	Dark      string `json:"dark"`
	AgentName string `json:"agent_name"`
}

type sendFunc func(OutboundEvent) error

// eventSurface renders session output as JSON events. Send errors are
// remembered and reported once by Err.
type eventSurface struct {
	mu   sync.Mutex
	send sendFunc
	err  error

	// onScreen runs on the session loop after every screen change.
	onScreen func(flow.Screen)
}

func newEventSurface(send sendFunc) *eventSurface {
	return &eventSurface{send: send}
}

func (s *eventSurface) emit(ev OutboundEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = s.send(ev)
}

// Err returns the first send failure.
func (s *eventSurface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *eventSurface) ShowScreen(screen flow.Screen) {
	s.emit(OutboundEvent{Type: "screen", Screen: screen})
	if s.onScreen != nil {
		s.onScreen(screen)
	}
}

func (s *eventSurface) AppendMessage(msg flow.Message) {
	s.emit(OutboundEvent{Type: "message", Message: &msg})
}

func (s *eventSurface) SetTyping(on bool) {
	s.emit(OutboundEvent{Type: "typing", Active: &on})
}

func (s *eventSurface) SetSubmitting(form flow.Form, busy bool) {
	s.emit(OutboundEvent{Type: "submitting", Form: form, Active: &busy})
}

func (s *eventSurface) Notify(n flow.Notice) {
	s.emit(OutboundEvent{Type: "notice", Kind: n.Kind, Text: n.Text})
}

func (s *eventSurface) FocusSlot(slot int) {
	s.emit(OutboundEvent{Type: "focus", Slot: slot})
}

func (s *eventSurface) SetSlot(slot int, digit string, filled bool) {
	s.emit(OutboundEvent{Type: "slot", Slot: slot, Value: &digit, Active: &filled})
}

func (s *eventSurface) SetCountdown(seconds int, visible bool) {
	s.emit(OutboundEvent{Type: "countdown", Seconds: &seconds, Active: &visible})
}

func (s *eventSurface) SetMaskedPhone(masked string) {
	s.emit(OutboundEvent{Type: "masked_phone", Text: masked})
}

func (s *eventSurface) ApplyTheme(p widgetconfig.Palette, agentName string) {
	s.emit(OutboundEvent{Type: "theme", Theme: &Theme{
		Primary:   p.Primary,
		Light:     p.Light,
		Dark:      p.Dark,
		AgentName: agentName,
	}})
}

func (s *eventSurface) Hide() {
	s.emit(OutboundEvent{Type: "hide"})
}

// frameHost forwards bridge messages to the frame script, which posts them to
// the embedding page.
type frameHost struct {
	surface *eventSurface
}

func (h frameHost) Post(msg bridge.Message) error {
	raw, err := bridge.Encode(msg)
	if err != nil {
		return err
	}
	h.surface.emit(OutboundEvent{Type: "bridge", Bridge: raw})
	return h.surface.Err()
}
