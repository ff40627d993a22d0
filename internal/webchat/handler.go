// Package webchat serves the embedded chat document: one flow session per
// WebSocket connection plus the endpoints the embedding page calls.
package webchat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/http/middleware"
	"github.com/wolfman30/omnitrix-widget/internal/observability/metrics"
	"github.com/wolfman30/omnitrix-widget/internal/responder"
	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
	"github.com/wolfman30/omnitrix-widget/internal/sessionstore"
	"github.com/wolfman30/omnitrix-widget/internal/tenancy"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

const (
	loopCallTimeout = 5 * time.Second
	storeTimeout    = 3 * time.Second
	maxPushBody     = 64 * 1024
)

var errSessionGone = errors.New("webchat: session ended")

// Options wires a Handler. Everything but WidgetJS may be left zero.
type Options struct {
	// Defaults is the operator's global widget config.
	Defaults      *widgetconfig.Override
	PublicBaseURL string
	WidgetJS      []byte
	Rules         *responder.RuleSet
	// Verifier switches sessions to the external verification service.
	Verifier flow.Verifier
	Store    *sessionstore.Store
	Tokens   *middleware.SessionTokens
	Origins  bridge.OriginPolicy
	Metrics  *metrics.WidgetMetrics
	Logger   *logging.Logger
}

// Handler manages frame connections and the host-facing endpoints.
type Handler struct {
	defaults      *widgetconfig.Override
	publicBaseURL string
	widgetJS      []byte
	rules         *responder.RuleSet
	verifier      flow.Verifier
	store         *sessionstore.Store
	tokens        *middleware.SessionTokens
	origins       bridge.OriginPolicy
	metrics       *metrics.WidgetMetrics
	logger        *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*frameConn // sessionID -> live connection
}

// frameConn is one live embedded document and the loop that owns it.
type frameConn struct {
	id      string
	loop    *scheduler.Loop
	session *flow.Session
	surface *eventSurface
	stopped chan struct{}
}

// NewHandler creates a web chat handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		defaults:      opts.Defaults,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		widgetJS:      opts.WidgetJS,
		rules:         opts.Rules,
		verifier:      opts.Verifier,
		store:         opts.Store,
		tokens:        opts.Tokens,
		origins:       opts.Origins,
		metrics:       opts.Metrics,
		logger:        logger,
		sessions:      make(map[string]*frameConn),
	}
}

// resolveConfig layers the global defaults, then the query, then fills the
// base URLs from the public address.
func (h *Handler) resolveConfig(q url.Values) widgetconfig.Config {
	cfg := widgetconfig.Resolve(h.defaults, q)
	scriptSrc := ""
	if h.publicBaseURL != "" {
		scriptSrc = h.publicBaseURL + "/widget.js"
	}
	return cfg.DetectBaseURLs(scriptSrc, h.publicBaseURL)
}

// ActiveSessions reports the number of live frame connections.
func (h *Handler) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HandleWebSocket upgrades to WebSocket and runs a chat session on it.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	q := r.URL.Query()
	cfg := h.resolveConfig(q)
	standalone := q.Get("standalone") == "true"

	fc, err := h.openSession(cfg, standalone, func(ev OutboundEvent) error {
		return websocket.JSON.Send(conn, ev)
	})
	if err != nil {
		h.logger.Error("webchat: failed to open session", "error", err)
		_ = websocket.JSON.Send(conn, OutboundEvent{Type: "error", Text: "unable to start chat"})
		return
	}
	defer h.closeSession(fc)

	logger := h.logger.With("session_id", fc.id, "tenant_id", cfg.TenantID)
	logger.Info("webchat: connection opened")

	for {
		var ev InboundEvent
		if err := websocket.JSON.Receive(conn, &ev); err != nil {
			logger.Debug("webchat: connection closed", "error", err)
			return
		}
		if ev.Type == "ping" {
			fc.surface.emit(OutboundEvent{Type: "pong"})
			go h.touch(fc.id)
			continue
		}
		if err := h.dispatch(r.Context(), fc, ev); err != nil {
			if errors.Is(err, errSessionGone) {
				return
			}
			logger.Debug("webchat: event rejected", "type", ev.Type, "error", err)
			if !surfaced(err) {
				fc.surface.emit(OutboundEvent{Type: "error", Text: err.Error()})
			}
		}
		if err := fc.surface.Err(); err != nil {
			logger.Debug("webchat: send failed", "error", err)
			return
		}
	}
}

// openSession creates, registers and starts a session whose output goes
// through send.
func (h *Handler) openSession(cfg widgetconfig.Config, standalone bool, send sendFunc) (*frameConn, error) {
	id := uuid.NewString()
	loop := scheduler.NewLoop()
	surface := newEventSurface(send)

	var host flow.HostBridge
	if !standalone {
		host = frameHost{surface: surface}
	}
	var rOpts []responder.Option
	if h.rules != nil {
		rOpts = append(rOpts, responder.WithRuleSet(*h.rules))
	}
	session, err := flow.NewSession(flow.Options{
		ID:        id,
		Config:    cfg,
		Scheduler: loop,
		Surface:   surface,
		Host:      host,
		Responder: responder.New(rOpts...),
		Verifier:  h.verifier,
		Metrics:   h.metrics,
		Logger:    h.logger,
	})
	if err != nil {
		return nil, err
	}

	fc := &frameConn{id: id, loop: loop, session: session, surface: surface, stopped: make(chan struct{})}
	surface.onScreen = func(screen flow.Screen) {
		rec := sessionstore.Record{SessionID: id, TenantID: cfg.TenantID, Screen: screen, UpdatedAt: loop.Now().UTC()}
		if user, ok := session.CurrentUser(); ok {
			rec.User = &user
		}
		go h.persist(rec)
	}

	token := ""
	if h.tokens.Enabled() {
		if token, err = h.tokens.Issue(id, cfg.TenantID); err != nil {
			return nil, fmt.Errorf("webchat: issue session token: %w", err)
		}
	}
	surface.emit(OutboundEvent{Type: "session", SessionID: id, Token: token})

	go func() {
		loop.Run(context.Background())
		close(fc.stopped)
	}()
	loop.Post(session.Start)

	h.mu.Lock()
	h.sessions[id] = fc
	h.mu.Unlock()
	h.metrics.SessionOpened()
	return fc, nil
}

func (h *Handler) closeSession(fc *frameConn) {
	h.mu.Lock()
	if h.sessions[fc.id] == fc {
		delete(h.sessions, fc.id)
	}
	h.mu.Unlock()

	fc.loop.Post(func() {
		fc.session.Shutdown()
		fc.loop.Close()
	})
	select {
	case <-fc.stopped:
	case <-time.After(loopCallTimeout):
		fc.loop.Close()
	}
	h.metrics.SessionClosed()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.Delete(ctx, fc.id); err != nil {
		h.logger.Warn("webchat: failed to drop session record", "session_id", fc.id, "error", err)
	}
	h.logger.Info("webchat: connection closed", "session_id", fc.id)
}

func (h *Handler) persist(rec sessionstore.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.Save(ctx, rec); err != nil {
		h.logger.Warn("webchat: failed to save session record", "session_id", rec.SessionID, "error", err)
	}
}

func (h *Handler) touch(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.Touch(ctx, sessionID); err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		h.logger.Debug("webchat: failed to extend session record", "session_id", sessionID, "error", err)
	}
}

func (h *Handler) lookup(sessionID string) (*frameConn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fc, ok := h.sessions[sessionID]
	return fc, ok
}

// call runs fn on the session loop and waits for it.
func (fc *frameConn) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	fc.loop.Post(func() { result <- fn() })

	ctx, cancel := context.WithTimeout(ctx, loopCallTimeout)
	defer cancel()
	select {
	case err := <-result:
		return err
	case <-fc.stopped:
		return errSessionGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch applies one inbound frame event to the session.
func (h *Handler) dispatch(ctx context.Context, fc *frameConn, ev InboundEvent) error {
	s := fc.session
	switch ev.Type {
	case "register":
		reg := flow.Registration{Name: ev.Name, Email: ev.Email, Phone: ev.Phone, Subject: ev.Subject}
		return fc.call(ctx, func() error { return s.SubmitRegistration(reg) })
	case "digit":
		return fc.call(ctx, func() error { return s.EnterDigit(ev.Slot, ev.Value) })
	case "backspace":
		return fc.call(ctx, func() error { return s.Backspace(ev.Slot) })
	case "paste":
		return fc.call(ctx, func() error { return s.Paste(ev.Slot, ev.Value) })
	case "submit_otp":
		return fc.call(ctx, s.SubmitOTP)
	case "resend":
		return fc.call(ctx, s.ResendOTP)
	case "send":
		return fc.call(ctx, func() error { return s.SendText(ev.Text) })
	case "attachment":
		data, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			return fmt.Errorf("webchat: attachment data: %w", err)
		}
		a := flow.Attachment{
			Name:     ev.FileName,
			MIMEType: ev.MIMEType,
			Size:     int64(len(data)),
			Content:  bytes.NewReader(data),
		}
		return fc.call(ctx, func() error { return s.SendAttachment(a) })
	case "close":
		return fc.call(ctx, func() error {
			s.Close()
			return nil
		})
	case "host":
		if !h.origins.Allows(ev.Origin) {
			h.metrics.ObserveBridge("inbound", "unknown", false)
			return fmt.Errorf("webchat: origin %q not allowed", ev.Origin)
		}
		msg, err := bridge.Decode(ev.Payload)
		if err != nil {
			h.metrics.ObserveBridge("inbound", "unknown", false)
			return err
		}
		return fc.call(ctx, func() error { return s.HandleHostMessage(msg) })
	default:
		return fmt.Errorf("webchat: unknown event type %q", ev.Type)
	}
}

// surfaced reports whether the session already told the visitor about err.
func surfaced(err error) bool {
	for _, known := range []error{
		flow.ErrMissingFields,
		flow.ErrInvalidEmail,
		flow.ErrIncompleteCode,
		flow.ErrCodeMismatch,
		flow.ErrUnsupportedType,
		flow.ErrFileTooLarge,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

type configResponse struct {
	TenantID               string                            `json:"tenantId"`
	ThemeColor             string                            `json:"themeColor"`
	AgentName              string                            `json:"agentName"`
	WelcomeMessage         string                            `json:"welcomeMessage"`
	Position               string                            `json:"position"`
	OffsetX                int                               `json:"offsetX"`
	OffsetY                int                               `json:"offsetY"`
	ButtonText             string                            `json:"buttonText"`
	ButtonSize             int                               `json:"buttonSize"`
	FrameWidth             int                               `json:"iframeWidth"`
	FrameHeight            int                               `json:"iframeHeight"`
	ZIndex                 int                               `json:"zIndex"`
	AutoOpen               bool                              `json:"autoOpen"`
	ResponseDelay          widgetconfig.DelayMillis          `json:"responseDelay"`
	MaxFileSize            int64                             `json:"maxFileSize"`
	AllowedFileTypes       []string                          `json:"allowedFileTypes"`
	RequireRegistration    bool                              `json:"requireRegistration"`
	RequireOTPVerification bool                              `json:"requireOTPVerification"`
	RegistrationFields     map[string]widgetconfig.FieldRule `json:"registrationFields"`
	BaseURL                string                            `json:"baseUrl"`
	WidgetBaseURL          string                            `json:"widgetBaseUrl"`
	FrameURL               string                            `json:"frameUrl"`
}

func newConfigResponse(c widgetconfig.Config) configResponse {
	return configResponse{
		TenantID:       c.TenantID,
		ThemeColor:     c.ThemeColor,
		AgentName:      c.AgentName,
		WelcomeMessage: c.WelcomeMessage,
		Position:       string(c.Position),
		OffsetX:        c.OffsetX,
		OffsetY:        c.OffsetY,
		ButtonText:     c.ButtonText,
		ButtonSize:     c.ButtonSize,
		FrameWidth:     c.FrameWidth,
		FrameHeight:    c.FrameHeight,
		ZIndex:         c.ZIndex,
		AutoOpen:       c.AutoOpen,
		ResponseDelay: widgetconfig.DelayMillis{
			Min: int(c.ResponseDelay.Min / time.Millisecond),
			Max: int(c.ResponseDelay.Max / time.Millisecond),
		},
		MaxFileSize:            c.MaxFileSize,
		AllowedFileTypes:       c.AllowedFileTypes,
		RequireRegistration:    c.RequireRegistration,
		RequireOTPVerification: c.RequireOTPVerification,
		RegistrationFields:     c.RegistrationFields,
		BaseURL:                c.BaseURL,
		WidgetBaseURL:          c.WidgetBaseURL,
		FrameURL:               widgetconfig.FrameURL(c),
	}
}

// HandleConfig returns the resolved widget config and frame URL for the
// host script.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.resolveConfig(r.URL.Query())
	writeJSON(w, http.StatusOK, newConfigResponse(cfg))
}

// HandlePushMessage delivers a host-page message to a live session.
func (h *Handler) HandlePushMessage(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && !h.origins.Allows(origin) {
		h.metrics.ObserveBridge("inbound", "unknown", false)
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	fc, ok := h.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	msg, err := bridge.Decode(raw)
	if err != nil {
		h.metrics.ObserveBridge("inbound", "unknown", false)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = fc.call(r.Context(), func() error { return fc.session.HandleHostMessage(msg) })
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "delivered", "session_id": fc.id})
	case errors.Is(err, bridge.ErrUnknownAction), errors.Is(err, bridge.ErrMalformed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, flow.ErrWrongScreen):
		http.Error(w, "chat is not open yet", http.StatusConflict)
	case errors.Is(err, flow.ErrClosed), errors.Is(err, errSessionGone):
		http.Error(w, "session ended", http.StatusGone)
	default:
		tenantID, _ := tenancy.TenantIDFromContext(r.Context())
		h.logger.Error("webchat: push failed", "session_id", fc.id, "tenant_id", tenantID, "error", err)
		http.Error(w, "push failed", http.StatusInternalServerError)
	}
}

type userResponse struct {
	SessionID string      `json:"session_id"`
	Screen    flow.Screen `json:"screen"`
	User      *flow.User  `json:"user"`
}

// HandleUser returns the registered visitor of a session: from the live
// connection when there is one, otherwise from the session store.
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if fc, ok := h.lookup(sessionID); ok {
		resp := userResponse{SessionID: sessionID}
		err := fc.call(r.Context(), func() error {
			resp.Screen = fc.session.Screen()
			if user, ok := fc.session.CurrentUser(); ok {
				resp.User = &user
			}
			return nil
		})
		if err == nil {
			writeJSON(w, http.StatusOK, resp)
			return
		}
		if !errors.Is(err, errSessionGone) {
			tenantID, _ := tenancy.TenantIDFromContext(r.Context())
			h.logger.Error("webchat: user lookup failed", "session_id", sessionID, "tenant_id", tenantID, "error", err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
	}

	rec, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("webchat: failed to load session record", "session_id", sessionID, "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{SessionID: rec.SessionID, Screen: rec.Screen, User: rec.User})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
