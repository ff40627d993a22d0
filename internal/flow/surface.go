package flow

import (
	"context"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
)

// Surface renders the frame document. Calls arrive on the session loop.
type Surface interface {
	ShowScreen(screen Screen)
	AppendMessage(msg Message)
	SetTyping(on bool)
	SetSubmitting(form Form, busy bool)
	Notify(n Notice)
	FocusSlot(slot int)
	SetSlot(slot int, digit string, filled bool)
	// SetCountdown shows the seconds left; visible false hides the countdown
	// and offers resend instead.
	SetCountdown(seconds int, visible bool)
	SetMaskedPhone(masked string)
	ApplyTheme(palette widgetconfig.Palette, agentName string)
	Hide()
}

// HostBridge posts messages to the embedding page. A nil HostBridge means
// the document runs standalone.
type HostBridge interface {
	Post(msg bridge.Message) error
}

// Verifier is the external code service. Implementations may block; the
// session calls them off the loop. A rejected code is reported as
// ErrCodeMismatch.
type Verifier interface {
	InitiateChat(ctx context.Context, user User) error
	ResendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
}
