package flow

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/responder"
	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type slotState struct {
	digit  string
	filled bool
}

type recordingSurface struct {
	screens    []Screen
	messages   []Message
	typing     []bool
	submitting map[Form][]bool
	notices    []Notice
	focus      []int
	slots      [CodeLength + 1]slotState
	countdown  int
	visible    bool
	masked     string
	palette    widgetconfig.Palette
	agentName  string
	hidden     bool
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{submitting: map[Form][]bool{}}
}

func (r *recordingSurface) ShowScreen(s Screen) { r.screens = append(r.screens, s) }
func (r *recordingSurface) AppendMessage(m Message) { r.messages = append(r.messages, m) }
func (r *recordingSurface) SetTyping(on bool) { r.typing = append(r.typing, on) }
func (r *recordingSurface) Notify(n Notice) { r.notices = append(r.notices, n) }
func (r *recordingSurface) FocusSlot(slot int) { r.focus = append(r.focus, slot) }
func (r *recordingSurface) SetMaskedPhone(m string) { r.masked = m }
func (r *recordingSurface) Hide() { r.hidden = true }
func (r *recordingSurface) SetSubmitting(f Form, b bool) {
	r.submitting[f] = append(r.submitting[f], b)
}
func (r *recordingSurface) SetSlot(slot int, digit string, filled bool) {
	r.slots[slot] = slotState{digit: digit, filled: filled}
}
func (r *recordingSurface) SetCountdown(seconds int, visible bool) {
	r.countdown, r.visible = seconds, visible
}
func (r *recordingSurface) ApplyTheme(p widgetconfig.Palette, agent string) {
	r.palette, r.agentName = p, agent
}

func (r *recordingSurface) lastNotice() Notice {
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

type recordingHost struct {
	posted []bridge.Message
}

func (h *recordingHost) Post(m bridge.Message) error {
	h.posted = append(h.posted, m)
	return nil
}

type stubVerifier struct {
	mu         sync.Mutex
	initErr    error
	resendErr  error
	verifyErr  error
	initCalls  []User
	verifyArgs []string
	resends    int
}

func (v *stubVerifier) InitiateChat(_ context.Context, u User) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.initCalls = append(v.initCalls, u)
	return v.initErr
}

func (v *stubVerifier) ResendOTP(_ context.Context, _ string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resends++
	return v.resendErr
}

func (v *stubVerifier) VerifyOTP(_ context.Context, email, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verifyArgs = append(v.verifyArgs, email+":"+code)
	return v.verifyErr
}

type harness struct {
	session *Session
	surface *recordingSurface
	sched   *scheduler.Fake
	host    *recordingHost
}

func newHarness(t *testing.T, mutate func(*widgetconfig.Config), verifier Verifier) *harness {
	t.Helper()
	cfg := widgetconfig.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		surface: newRecordingSurface(),
		sched:   scheduler.NewFake(testEpoch),
		host:    &recordingHost{},
	}
	opts := Options{
		ID:        "session-1",
		Config:    cfg,
		Scheduler: h.sched,
		Surface:   h.surface,
		Host:      h.host,
		Responder: responder.New(responder.WithRand(rand.New(rand.NewPCG(7, 11)))),
		Logger:    logging.Discard(),
	}
	if verifier != nil {
		opts.Verifier = verifier
	}
	s, err := NewSession(opts)
	require.NoError(t, err)
	h.session = s
	s.Start()
	return h
}

var validRegistration = Registration{
	Name:  "  Ana Silva ",
	Email: "ana@example.com",
	Phone: "5551234567",
}

// toOTP registers and waits out the submission delay.
func (h *harness) toOTP(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.SubmitRegistration(validRegistration))
	h.sched.Advance(registrationDelay)
	require.Equal(t, ScreenOTP, h.session.Screen())
}

// settle drains callbacks posted from other goroutines.
func (h *harness) settle(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.sched.RunPending()
		return cond()
	}, 2*time.Second, 5*time.Millisecond)
}
