// Package flow implements the embedded chat document: the registration, OTP
// and chat screens, the verification countdown and the message log.
package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/omnitrix-widget/internal/observability/metrics"
	"github.com/wolfman30/omnitrix-widget/internal/responder"
	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
	"github.com/wolfman30/omnitrix-widget/internal/templates"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Options wires a Session. Scheduler and Surface are required.
type Options struct {
	ID        string
	Config    widgetconfig.Config
	Scheduler scheduler.Scheduler
	Surface   Surface
	// Host is nil when the document is not embedded.
	Host      HostBridge
	Responder *responder.Responder
	// Verifier switches registration, resend and verification to the
	// external service. Nil keeps the simulated flow.
	Verifier Verifier
	Metrics  *metrics.WidgetMetrics
	Logger   *logging.Logger
}

// Session is one embedded chat document. Every method except ID must be
// called on the session's scheduler loop.
type Session struct {
	id       string
	cfg      widgetconfig.Config
	sched    scheduler.Scheduler
	surface  Surface
	host     HostBridge
	agent    *responder.Agent
	verifier Verifier
	welcome  templates.Renderer
	metrics  *metrics.WidgetMetrics
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	started bool
	closed  bool
	screen  Screen
	user    *User

	messages []Message
	msgSeq   int

	registering bool
	verifying   bool
	code        code
	focus       int
	autoSubmit  scheduler.TaskID
	countdown   countdown
}

func NewSession(opts Options) (*Session, error) {
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("flow: scheduler required")
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("flow: surface required")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       id,
		cfg:      opts.Config.Normalize(),
		sched:    opts.Scheduler,
		surface:  opts.Surface,
		host:     opts.Host,
		verifier: opts.Verifier,
		metrics:  opts.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		screen:   ScreenRegistration,
	}
	s.logger = logger.With("session_id", id, "tenant_id", s.cfg.TenantID)
	s.agent = responder.NewAgent(opts.Scheduler, opts.Responder, responder.Hooks{
		Typing: s.surface.SetTyping,
		Reply: func(text string) {
			s.appendMessage(Message{Text: text, Sender: SenderAgent, Type: MessageText})
		},
	})
	s.countdown = countdown{
		sched: opts.Scheduler,
		onTick: func(remaining int, running bool) {
			s.surface.SetCountdown(remaining, running)
		},
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Start themes the surface and shows the initial screen. Later calls are no-ops.
func (s *Session) Start() {
	if s.started || s.closed {
		return
	}
	s.applyTheme()
	if !s.cfg.RequireRegistration {
		s.enterChat()
	} else {
		s.surface.ShowScreen(ScreenRegistration)
	}
	s.started = true
	s.logger.Info("chat session started", "screen", s.screen)
}

// Shutdown cancels every pending timer and in-flight service call.
func (s *Session) Shutdown() {
	if s.closed {
		return
	}
	s.closed = true
	s.countdown.stop()
	s.cancelAutoSubmit()
	s.agent.Stop()
	s.cancel()
}

func (s *Session) Screen() Screen { return s.screen }

// CurrentUser returns the registered user, if any.
func (s *Session) CurrentUser() (User, bool) {
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Messages returns a copy of the chat log.
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Config returns the session's current configuration.
func (s *Session) Config() widgetconfig.Config { return s.cfg }

// CountdownRemaining reports the seconds left and whether the countdown runs.
func (s *Session) CountdownRemaining() (int, bool) {
	return s.countdown.remaining, s.countdown.running()
}

// UpdateConfig merges o into the configuration and re-themes the surface.
func (s *Session) UpdateConfig(o widgetconfig.Override) {
	s.cfg = s.cfg.Apply(o).Normalize()
	s.applyTheme()
}

// SkipRegistration disables registration and jumps to chat.
func (s *Session) SkipRegistration() {
	s.cfg.RequireRegistration = false
	if s.screen == ScreenChat {
		return
	}
	s.enterChat()
}

func (s *Session) SetOTPRequired(required bool) {
	s.cfg.RequireOTPVerification = required
}

func (s *Session) SetDefaultOTP(otp string) {
	s.cfg.DefaultOTP = otp
}

// SubmitRegistration validates the form and, on success, creates the user and
// moves on after the submission delay.
func (s *Session) SubmitRegistration(reg Registration) error {
	if s.closed {
		return ErrClosed
	}
	if s.screen != ScreenRegistration {
		return ErrWrongScreen
	}
	if s.registering {
		return ErrSubmitPending
	}

	user := User{
		Name:    strings.TrimSpace(reg.Name),
		Email:   strings.TrimSpace(reg.Email),
		Phone:   strings.TrimSpace(reg.Phone),
		Subject: strings.TrimSpace(reg.Subject),
	}
	if user.Name == "" || user.Email == "" || user.Phone == "" {
		s.rejectRegistration("Please fill in all required fields")
		return ErrMissingFields
	}
	if !emailPattern.MatchString(user.Email) {
		s.rejectRegistration("Please enter a valid email address")
		return ErrInvalidEmail
	}

	s.registering = true
	s.surface.SetSubmitting(FormRegistration, true)

	if s.verifier == nil {
		s.user = &user
		s.metrics.ObserveRegistration("accepted")
		s.sched.After(registrationDelay, s.registrationDone)
		return nil
	}

	s.offLoop(func(ctx context.Context) error {
		return s.verifier.InitiateChat(ctx, user)
	}, func(err error) {
		if err != nil {
			s.registering = false
			s.surface.SetSubmitting(FormRegistration, false)
			s.metrics.ObserveRegistration("failed")
			s.logger.Warn("initiate chat failed", "error", err)
			s.surface.Notify(Notice{Kind: NoticeError, Text: "We couldn't start your chat. Please try again."})
			return
		}
		s.user = &user
		s.metrics.ObserveRegistration("accepted")
		s.registrationDone()
	})
	return nil
}

func (s *Session) rejectRegistration(text string) {
	s.metrics.ObserveRegistration("rejected")
	s.surface.Notify(Notice{Kind: NoticeError, Text: text})
}

func (s *Session) registrationDone() {
	if s.closed {
		return
	}
	s.registering = false
	s.surface.SetSubmitting(FormRegistration, false)
	if s.screen != ScreenRegistration {
		return
	}
	if s.cfg.RequireOTPVerification {
		s.enterOTP()
		return
	}
	s.enterChat()
}

func (s *Session) enterOTP() {
	s.setScreen(ScreenOTP)
	if s.user != nil && s.user.Phone != "" {
		s.surface.SetMaskedPhone(maskPhone(s.user.Phone))
	}
	s.clearCode()
	s.countdown.start()
	s.focusSlot(1)
}

func (s *Session) enterChat() {
	s.countdown.stop()
	s.cancelAutoSubmit()
	s.setScreen(ScreenChat)
	if len(s.messages) == 0 {
		data := templates.WelcomeData{AgentName: s.cfg.AgentName, TenantID: s.cfg.TenantID}
		if s.user != nil {
			data.Name = s.user.Name
		}
		s.appendMessage(Message{
			Text:   s.welcome.Welcome(s.cfg.WelcomeMessage, data),
			Sender: SenderAgent,
			Type:   MessageText,
		})
	}
}

func (s *Session) setScreen(next Screen) {
	prev := s.screen
	s.screen = next
	s.surface.ShowScreen(next)
	if prev != next {
		s.metrics.ObserveScreen(string(prev), string(next))
		s.logger.Debug("screen changed", "from", prev, "screen", next)
	}
}

func (s *Session) applyTheme() {
	palette, ok := s.cfg.Palette()
	if !ok {
		s.logger.Warn("theme color not applied", "theme_color", s.cfg.ThemeColor)
	}
	s.surface.ApplyTheme(palette, s.cfg.AgentName)
}

// offLoop runs call on its own goroutine and posts done back to the loop.
func (s *Session) offLoop(call func(ctx context.Context) error, done func(err error)) {
	ctx := s.ctx
	go func() {
		err := call(ctx)
		s.sched.Post(func() {
			if s.closed {
				return
			}
			done(err)
		})
	}()
}
