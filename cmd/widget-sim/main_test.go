package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

func newTestSim(t *testing.T) (*sim, *scheduler.Fake, *bytes.Buffer) {
	t.Helper()
	fake := scheduler.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	out := &bytes.Buffer{}
	cfg := widgetconfig.Defaults().Normalize().DetectBaseURLs("", frameOrigin)
	s, err := newSim(fake, cfg, nil, out, logging.Discard())
	require.NoError(t, err)
	fake.RunPending()
	return s, fake, out
}

func TestSimRegistrationToChat(t *testing.T) {
	s, fake, out := newTestSim(t)

	s.run("click")
	fake.Advance(time.Second)
	require.True(t, s.ctrl.IsOpen())

	s.run("register Ana Silva|ana@example.com|5551234567")
	fake.Advance(1500 * time.Millisecond)
	require.Equal(t, flow.ScreenOTP, s.session.Screen())
	assert.Contains(t, out.String(), "code sent to ******4567")

	s.run("paste 123456")
	fake.Advance(2 * time.Second)
	require.Equal(t, flow.ScreenChat, s.session.Screen())

	out.Reset()
	s.run("user")
	assert.Contains(t, out.String(), "current user: Ana Silva <ana@example.com>")

	s.run("push hello from the page")
	fake.RunPending()
	fake.Advance(3 * time.Second)
	msgs := s.session.Messages()
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, "hello from the page", msgs[1].Text)
	assert.Equal(t, flow.SenderAgent, msgs[2].Sender)
}

func TestSimFrameCloseClosesWidget(t *testing.T) {
	s, fake, _ := newTestSim(t)

	s.run("open")
	fake.Advance(time.Second)
	require.True(t, s.ctrl.IsOpen())

	s.run("frame-close")
	fake.RunPending()
	assert.False(t, s.ctrl.IsOpen())
}

func TestSimRejectsBadInput(t *testing.T) {
	s, _, out := newTestSim(t)

	s.run("push too early")
	assert.Contains(t, out.String(), "! host: widget is not open")

	out.Reset()
	s.run("viewport wide")
	assert.Contains(t, out.String(), "expected two numbers")

	out.Reset()
	s.run("dance")
	assert.Contains(t, out.String(), `unknown command "dance"`)
}

func TestSimViewportSwitchesToFullScreen(t *testing.T) {
	s, fake, out := newTestSim(t)

	s.run("open")
	fake.Advance(time.Second)
	out.Reset()

	s.run("viewport 375 667")
	assert.Contains(t, out.String(), "container full screen")
}

func TestSimAttachRejectsNonImage(t *testing.T) {
	s, _, out := newTestSim(t)
	s.run("open")
	s.session.SkipRegistration()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

	s.run("attach " + path)
	assert.Contains(t, out.String(), "Please select a valid image file")
}
