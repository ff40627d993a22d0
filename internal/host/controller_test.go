package host

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

type fakePage struct {
	width, height    int
	button           ButtonStyle
	buttonVisible    bool
	placement        Placement
	containerVisible bool
	revealed         bool
	frameW, frameH   int
	radius           int
	source           string
	focused          int
	posted           []bridge.Message
	postErr          error
}

func (p *fakePage) Viewport() (int, int) { return p.width, p.height }
func (p *fakePage) StyleButton(s ButtonStyle) { p.button = s }
func (p *fakePage) SetButtonVisible(v bool) { p.buttonVisible = v }
func (p *fakePage) PlaceContainer(pl Placement) { p.placement = pl }
func (p *fakePage) SetContainerVisible(v bool) { p.containerVisible = v }
func (p *fakePage) SetFrameRevealed(r bool) { p.revealed = r }
func (p *fakePage) SetFrameSize(w, h int) { p.frameW, p.frameH = w, h }
func (p *fakePage) SetFrameRadius(px int) { p.radius = px }
func (p *fakePage) SetFrameSource(u string) { p.source = u }
func (p *fakePage) FocusFrame() { p.focused++ }
func (p *fakePage) PostToFrame(m bridge.Message) error {
	if p.postErr != nil {
		return p.postErr
	}
	p.posted = append(p.posted, m)
	return nil
}

type staticUsers struct {
	user flow.User
	ok   bool
}

func (s staticUsers) CurrentUser() (flow.User, bool) { return s.user, s.ok }

func newController(t *testing.T, mutate func(*widgetconfig.Config), opts ...func(*Options)) (*Controller, *fakePage, *scheduler.Fake) {
	t.Helper()
	cfg := widgetconfig.Defaults()
	cfg.WidgetBaseURL = "https://widget.example.com"
	if mutate != nil {
		mutate(&cfg)
	}
	page := &fakePage{width: 1280, height: 800}
	sched := scheduler.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	o := Options{Config: cfg, Scheduler: sched, Surface: page, Logger: logging.Discard()}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	return c, page, sched
}

func TestNewCreatesClosedWidget(t *testing.T) {
	c, page, _ := newController(t, nil)

	assert.False(t, c.IsOpen())
	assert.True(t, page.buttonVisible)
	assert.False(t, page.containerVisible)
	assert.Equal(t, "💬", page.button.Text)
	assert.Equal(t, "#0047AB", page.button.Color)
	assert.Equal(t, 60, page.button.Size)
	assert.Equal(t, 400, page.frameW)
	assert.Equal(t, 600, page.frameH)
	assert.Equal(t, 9998, page.placement.ZIndex)

	u, err := url.Parse(page.source)
	require.NoError(t, err)
	assert.Equal(t, "/index.html", u.Path)
	assert.Equal(t, "default", u.Query().Get("tenantId"))
}

func TestOpenSequence(t *testing.T) {
	c, page, sched := newController(t, nil)

	c.Open()
	assert.True(t, c.IsOpen())
	assert.True(t, page.containerVisible)
	assert.False(t, page.buttonVisible)
	assert.False(t, page.revealed)

	sched.Advance(10 * time.Millisecond)
	assert.True(t, page.revealed)
	assert.Equal(t, 0, page.focused)

	sched.Advance(290 * time.Millisecond)
	assert.Equal(t, 1, page.focused)

	c.Open()
	sched.Advance(time.Second)
	assert.Equal(t, 1, page.focused, "open is a no-op when already open")
}

func TestCloseHidesAfterTransition(t *testing.T) {
	c, page, sched := newController(t, nil)
	c.Open()
	sched.Advance(time.Second)

	c.Close()
	assert.False(t, c.IsOpen())
	assert.False(t, page.revealed)
	assert.True(t, page.buttonVisible)
	assert.True(t, page.containerVisible)

	sched.Advance(300 * time.Millisecond)
	assert.False(t, page.containerVisible)

	c.Close()
	assert.Equal(t, 0, sched.Pending())
}

func TestReopenCancelsPendingHide(t *testing.T) {
	c, page, sched := newController(t, nil)
	c.Open()
	sched.Advance(time.Second)

	c.Close()
	sched.Advance(100 * time.Millisecond)
	c.Open()
	sched.Advance(time.Second)

	assert.True(t, page.containerVisible)
	assert.True(t, page.revealed)
}

func TestToggleAndButtonClick(t *testing.T) {
	c, _, _ := newController(t, nil)

	c.Toggle()
	assert.True(t, c.IsOpen())
	c.ButtonClick()
	assert.True(t, c.IsOpen(), "button click never closes")
	c.Toggle()
	assert.False(t, c.IsOpen())
}

func TestEscapeCloses(t *testing.T) {
	c, _, _ := newController(t, nil)
	c.HandleKey("Escape")
	assert.False(t, c.IsOpen())

	c.Open()
	c.HandleKey("Enter")
	assert.True(t, c.IsOpen())
	c.HandleKey("Escape")
	assert.False(t, c.IsOpen())
}

func TestLayoutBreakpoint(t *testing.T) {
	c, page, _ := newController(t, func(cfg *widgetconfig.Config) {
		cfg.Position = widgetconfig.PositionBottomLeft
	})

	page.width, page.height = 420, 700
	c.Open()
	assert.True(t, page.placement.FullScreen)
	assert.Equal(t, 0, page.radius)

	page.width, page.height = 1024, 500
	c.HandleResize()
	assert.False(t, page.placement.FullScreen)
	assert.Equal(t, widgetconfig.PositionBottomLeft, page.placement.Corner)
	assert.Equal(t, 20, page.placement.Margin)
	assert.Equal(t, 12, page.radius)
	assert.Equal(t, 400, page.frameW)
	assert.Equal(t, 460, page.frameH)

	page.width = 430
	c.Close()
	c.HandleResize()
	assert.False(t, page.placement.FullScreen, "closed widgets are not repositioned")
}

func TestHandleFrameMessage(t *testing.T) {
	c, page, _ := newController(t, nil)
	c.Open()

	require.NoError(t, c.HandleFrameMessage("https://widget.example.com", []byte(`{"action":"resize","height":500}`)))
	assert.Equal(t, 400, page.frameW)
	assert.Equal(t, 500, page.frameH)

	err := c.HandleFrameMessage("https://widget.example.com", []byte(`{"action":"explode"}`))
	assert.True(t, errors.Is(err, bridge.ErrUnknownAction))

	err = c.HandleFrameMessage("https://widget.example.com", []byte(`{"action":"sendMessage","message":"x"}`))
	assert.True(t, errors.Is(err, bridge.ErrUnknownAction))

	require.NoError(t, c.HandleFrameMessage("https://anywhere.example", []byte(`{"action":"close"}`)))
	assert.False(t, c.IsOpen())
}

func TestHandleFrameMessageOriginPolicy(t *testing.T) {
	c, _, _ := newController(t, nil, func(o *Options) {
		o.Origins = bridge.NewOriginPolicy([]string{"https://widget.example.com"})
	})
	c.Open()

	err := c.HandleFrameMessage("https://evil.example", []byte(`{"action":"close"}`))
	assert.Error(t, err)
	assert.True(t, c.IsOpen())

	require.NoError(t, c.HandleFrameMessage("https://widget.example.com", []byte(`{"action":"close"}`)))
	assert.False(t, c.IsOpen())
}

func TestUpdateConfig(t *testing.T) {
	c, page, _ := newController(t, nil)
	color := "#AA0000"
	tenant := "acme"
	c.UpdateConfig(widgetconfig.Override{ThemeColor: &color, TenantID: &tenant})

	assert.Equal(t, "#AA0000", page.button.Color)
	assert.True(t, page.buttonVisible)
	u, err := url.Parse(page.source)
	require.NoError(t, err)
	assert.Equal(t, "acme", u.Query().Get("tenantId"))
	assert.Equal(t, c.FrameURL(), page.source)
}

func TestSendMessageOnlyWhenOpen(t *testing.T) {
	c, page, _ := newController(t, nil)

	assert.ErrorIs(t, c.SendMessage("hi"), ErrNotOpen)
	assert.Empty(t, page.posted)

	c.Open()
	require.NoError(t, c.SendMessage("hi"))
	assert.Equal(t, []bridge.Message{bridge.SendMessage{Text: "hi"}}, page.posted)

	page.postErr = errors.New("frame gone")
	assert.Error(t, c.SendMessage("again"))
}

func TestCurrentUserOnlyWhenOpen(t *testing.T) {
	users := staticUsers{user: flow.User{Name: "Ana"}, ok: true}
	c, _, _ := newController(t, nil, func(o *Options) { o.Users = users })

	_, ok := c.CurrentUser()
	assert.False(t, ok)

	c.Open()
	u, ok := c.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "Ana", u.Name)
}

func TestAutoOpen(t *testing.T) {
	c, _, sched := newController(t, func(cfg *widgetconfig.Config) { cfg.AutoOpen = true })

	sched.Advance(999 * time.Millisecond)
	assert.False(t, c.IsOpen())
	sched.Advance(time.Millisecond)
	assert.True(t, c.IsOpen())
}

func TestShutdownCancelsAutoOpen(t *testing.T) {
	c, _, sched := newController(t, func(cfg *widgetconfig.Config) { cfg.AutoOpen = true })
	c.Shutdown()
	sched.Advance(2 * time.Second)
	assert.False(t, c.IsOpen())
	assert.Equal(t, 0, sched.Pending())
}
