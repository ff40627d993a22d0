// Package host implements the embedding-page side of the widget: the trigger
// button, the chat container and the frame that hosts the chat document.
package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/observability/metrics"
	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

const (
	mobileBreakpoint = 480
	panelMargin      = 20
	panelRadius      = 12

	revealDelay    = 10 * time.Millisecond
	transitionTime = 300 * time.Millisecond
	autoOpenDelay  = time.Second
)

// ErrNotOpen is returned by operations that need the widget open.
var ErrNotOpen = errors.New("host: widget is not open")

type Options struct {
	Config    widgetconfig.Config
	Scheduler scheduler.Scheduler
	Surface   Surface
	// Origins filters frame messages; the zero value accepts every origin.
	Origins bridge.OriginPolicy
	Users   UserLookup
	Metrics *metrics.WidgetMetrics
	Logger  *logging.Logger
}

// Controller owns the Closed/Open state of the widget. All methods must be
// called on the scheduler loop.
type Controller struct {
	cfg     widgetconfig.Config
	sched   scheduler.Scheduler
	surface Surface
	origins bridge.OriginPolicy
	users   UserLookup
	metrics *metrics.WidgetMetrics
	logger  *logging.Logger

	open     bool
	frameURL string
	frameW   int
	frameH   int

	revealTask   scheduler.TaskID
	focusTask    scheduler.TaskID
	hideTask     scheduler.TaskID
	autoOpenTask scheduler.TaskID
}

// New builds the button, container and frame, and schedules auto-open when
// configured.
func New(opts Options) (*Controller, error) {
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("host: scheduler required")
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("host: surface required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	cfg := opts.Config.Normalize()

	c := &Controller{
		cfg:     cfg,
		sched:   opts.Scheduler,
		surface: opts.Surface,
		origins: opts.Origins,
		users:   opts.Users,
		metrics: opts.Metrics,
		logger:  logger.With("tenant_id", cfg.TenantID),
	}
	if c.origins.Permissive() {
		c.logger.Debug("frame messages accepted from any origin")
	}

	c.styleButton()
	c.surface.SetButtonVisible(true)
	c.surface.SetContainerVisible(false)
	c.surface.SetFrameRevealed(false)
	c.setFrameSize(cfg.FrameWidth, cfg.FrameHeight)
	c.surface.SetFrameRadius(panelRadius)
	c.loadFrame()
	c.place()

	if cfg.AutoOpen {
		c.autoOpenTask = c.sched.After(autoOpenDelay, func() {
			c.autoOpenTask = 0
			c.Open()
		})
	}
	c.logger.Info("chat widget loaded")
	return c, nil
}

func (c *Controller) IsOpen() bool { return c.open }

// FrameURL returns the document address currently loaded in the frame.
func (c *Controller) FrameURL() string { return c.frameURL }

func (c *Controller) Config() widgetconfig.Config { return c.cfg }

// FrameSize returns the frame's current pixel size.
func (c *Controller) FrameSize() (int, int) { return c.frameW, c.frameH }

func (c *Controller) Open() {
	if c.open {
		return
	}
	c.open = true
	c.cancel(&c.hideTask)
	c.cancel(&c.autoOpenTask)

	c.place()
	c.surface.SetContainerVisible(true)
	c.revealTask = c.sched.After(revealDelay, func() {
		c.revealTask = 0
		c.surface.SetFrameRevealed(true)
	})
	c.surface.SetButtonVisible(false)
	c.focusTask = c.sched.After(transitionTime, func() {
		c.focusTask = 0
		c.surface.FocusFrame()
	})
	c.logger.Debug("widget opened")
}

func (c *Controller) Close() {
	if !c.open {
		return
	}
	c.open = false
	c.cancel(&c.revealTask)
	c.cancel(&c.focusTask)

	c.surface.SetFrameRevealed(false)
	c.hideTask = c.sched.After(transitionTime, func() {
		c.hideTask = 0
		c.surface.SetContainerVisible(false)
	})
	c.surface.SetButtonVisible(true)
	c.logger.Debug("widget closed")
}

func (c *Controller) Toggle() {
	if c.open {
		c.Close()
		return
	}
	c.Open()
}

// ButtonClick only opens; closing happens from inside the chat.
func (c *Controller) ButtonClick() {
	c.Open()
}

// HandleKey closes the widget on Escape.
func (c *Controller) HandleKey(key string) {
	if key == "Escape" && c.open {
		c.Close()
	}
}

// HandleResize re-evaluates the layout after a viewport change.
func (c *Controller) HandleResize() {
	if !c.open {
		return
	}
	c.place()
}

// HandleFrameMessage applies a message posted by the chat document.
func (c *Controller) HandleFrameMessage(origin string, raw []byte) error {
	if !c.origins.Allows(origin) {
		c.metrics.ObserveBridge("inbound", "unknown", false)
		c.logger.Warn("frame message from untrusted origin dropped", "origin", origin)
		return fmt.Errorf("host: origin %q not allowed", origin)
	}
	msg, err := bridge.Decode(raw)
	if err != nil {
		c.metrics.ObserveBridge("inbound", "unknown", false)
		c.logger.Debug("frame message ignored", "error", err)
		return err
	}

	switch m := msg.(type) {
	case bridge.Close:
		c.Close()
	case bridge.Resize:
		w, h := c.frameW, c.frameH
		if m.Width > 0 {
			w = m.Width
		}
		if m.Height > 0 {
			h = m.Height
		}
		c.setFrameSize(w, h)
	default:
		c.metrics.ObserveBridge("inbound", msg.Action(), false)
		return fmt.Errorf("%w: %s is not accepted by the host", bridge.ErrUnknownAction, msg.Action())
	}
	c.metrics.ObserveBridge("inbound", msg.Action(), true)
	return nil
}

// UpdateConfig restyles the button, repositions an open widget and reloads
// the frame with the new parameters.
func (c *Controller) UpdateConfig(o widgetconfig.Override) {
	c.cfg = c.cfg.Apply(o).Normalize()
	c.styleButton()
	c.surface.SetButtonVisible(!c.open)
	if c.open {
		c.place()
	}
	c.loadFrame()
}

// SendMessage injects text into the chat as a user message.
func (c *Controller) SendMessage(text string) error {
	if !c.open {
		return ErrNotOpen
	}
	if err := c.surface.PostToFrame(bridge.SendMessage{Text: text}); err != nil {
		c.metrics.ObserveBridge("outbound", bridge.ActionSendMessage, false)
		return fmt.Errorf("host: send message: %w", err)
	}
	c.metrics.ObserveBridge("outbound", bridge.ActionSendMessage, true)
	return nil
}

// CurrentUser returns the registered user while the widget is open.
func (c *Controller) CurrentUser() (flow.User, bool) {
	if !c.open || c.users == nil {
		return flow.User{}, false
	}
	return c.users.CurrentUser()
}

// Shutdown cancels pending transitions and auto-open.
func (c *Controller) Shutdown() {
	c.cancel(&c.revealTask)
	c.cancel(&c.focusTask)
	c.cancel(&c.hideTask)
	c.cancel(&c.autoOpenTask)
}

func (c *Controller) place() {
	vw, vh := c.surface.Viewport()
	if vw < mobileBreakpoint {
		c.surface.PlaceContainer(Placement{FullScreen: true, ZIndex: c.cfg.ZIndex - 1})
		c.surface.SetFrameRadius(0)
		return
	}
	c.setFrameSize(min(c.cfg.FrameWidth, vw-2*panelMargin), min(c.cfg.FrameHeight, vh-2*panelMargin))
	c.surface.PlaceContainer(Placement{
		Corner: c.cfg.Position,
		Margin: panelMargin,
		ZIndex: c.cfg.ZIndex - 1,
	})
	c.surface.SetFrameRadius(panelRadius)
}

func (c *Controller) styleButton() {
	c.surface.StyleButton(ButtonStyle{
		Text:     c.cfg.ButtonText,
		Color:    c.cfg.ThemeColor,
		Size:     c.cfg.ButtonSize,
		ZIndex:   c.cfg.ZIndex,
		Position: c.cfg.Position,
		OffsetX:  c.cfg.OffsetX,
		OffsetY:  c.cfg.OffsetY,
	})
}

func (c *Controller) loadFrame() {
	c.frameURL = widgetconfig.FrameURL(c.cfg)
	c.surface.SetFrameSource(c.frameURL)
}

func (c *Controller) setFrameSize(w, h int) {
	c.frameW, c.frameH = w, h
	c.surface.SetFrameSize(w, h)
}

func (c *Controller) cancel(id *scheduler.TaskID) {
	if *id != 0 {
		c.sched.Cancel(*id)
		*id = 0
	}
}
