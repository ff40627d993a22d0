package main

import (
	"fmt"
	"io"

	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/host"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
)

// pageConsole prints what the embedding page would render.
type pageConsole struct {
	out     io.Writer
	width   int
	height  int
	toFrame func(bridge.Message) error
}

func (p *pageConsole) Viewport() (int, int) { return p.width, p.height }

func (p *pageConsole) StyleButton(s host.ButtonStyle) {
	fmt.Fprintf(p.out, "[page] button %q %s %dpx at %s (+%d,+%d)\n", s.Text, s.Color, s.Size, s.Position, s.OffsetX, s.OffsetY)
}

func (p *pageConsole) SetButtonVisible(visible bool) {
	fmt.Fprintf(p.out, "[page] button visible=%t\n", visible)
}

func (p *pageConsole) PlaceContainer(pl host.Placement) {
	if pl.FullScreen {
		fmt.Fprintln(p.out, "[page] container full screen")
		return
	}
	fmt.Fprintf(p.out, "[page] container %s margin=%d z=%d\n", pl.Corner, pl.Margin, pl.ZIndex)
}

func (p *pageConsole) SetContainerVisible(visible bool) {
	fmt.Fprintf(p.out, "[page] container visible=%t\n", visible)
}

func (p *pageConsole) SetFrameRevealed(revealed bool) {
	fmt.Fprintf(p.out, "[page] frame revealed=%t\n", revealed)
}

func (p *pageConsole) SetFrameSize(w, h int) {
	fmt.Fprintf(p.out, "[page] frame %dx%d\n", w, h)
}

func (p *pageConsole) SetFrameRadius(px int) {}

func (p *pageConsole) SetFrameSource(url string) {
	fmt.Fprintf(p.out, "[page] frame src %s\n", url)
}

func (p *pageConsole) FocusFrame() {}

func (p *pageConsole) PostToFrame(msg bridge.Message) error {
	if p.toFrame == nil {
		return fmt.Errorf("frame not loaded")
	}
	return p.toFrame(msg)
}

// frameConsole prints what the chat document would render.
type frameConsole struct {
	out io.Writer
}

func (f *frameConsole) ShowScreen(screen flow.Screen) {
	fmt.Fprintf(f.out, "[frame] screen %s\n", screen)
}

func (f *frameConsole) AppendMessage(msg flow.Message) {
	if msg.Type == flow.MessageImage {
		fmt.Fprintf(f.out, "[frame] %s sent image %s (%d bytes as data URI)\n", msg.Sender, msg.ImageName, len(msg.ImageURL))
		return
	}
	fmt.Fprintf(f.out, "[frame] %s: %s\n", msg.Sender, msg.Text)
}

func (f *frameConsole) SetTyping(on bool) {
	if on {
		fmt.Fprintln(f.out, "[frame] agent is typing...")
	}
}

func (f *frameConsole) SetSubmitting(form flow.Form, busy bool) {
	if busy {
		fmt.Fprintf(f.out, "[frame] %s submitting...\n", form)
	}
}

func (f *frameConsole) Notify(n flow.Notice) {
	fmt.Fprintf(f.out, "[frame] %s: %s\n", n.Kind, n.Text)
}

func (f *frameConsole) FocusSlot(slot int) {}

func (f *frameConsole) SetSlot(slot int, digit string, filled bool) {}

func (f *frameConsole) SetCountdown(seconds int, visible bool) {
	switch {
	case !visible:
		fmt.Fprintln(f.out, "[frame] code expired; type 'resend'")
	case seconds%15 == 0:
		fmt.Fprintf(f.out, "[frame] resend available in %ds\n", seconds)
	}
}

func (f *frameConsole) SetMaskedPhone(masked string) {
	fmt.Fprintf(f.out, "[frame] code sent to %s\n", masked)
}

func (f *frameConsole) ApplyTheme(p widgetconfig.Palette, agentName string) {
	fmt.Fprintf(f.out, "[frame] theme %s (light %s, dark %s), agent %s\n", p.Primary, p.Light, p.Dark, agentName)
}

func (f *frameConsole) Hide() {
	fmt.Fprintln(f.out, "[frame] hidden")
}
