package host

import (
	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
)

// ButtonStyle is the trigger button's appearance and anchor.
type ButtonStyle struct {
	Text     string
	Color    string
	Size     int
	ZIndex   int
	Position widgetconfig.Position
	OffsetX  int
	OffsetY  int
}

// Placement anchors the chat container. FullScreen ignores the other fields.
type Placement struct {
	FullScreen bool
	Corner     widgetconfig.Position
	Margin     int
	ZIndex     int
}

// Surface is the embedding page. Calls arrive on the host loop.
type Surface interface {
	Viewport() (width, height int)
	StyleButton(style ButtonStyle)
	SetButtonVisible(visible bool)
	PlaceContainer(p Placement)
	SetContainerVisible(visible bool)
	// SetFrameRevealed runs the frame's opening (true) or closing transition.
	SetFrameRevealed(revealed bool)
	SetFrameSize(width, height int)
	SetFrameRadius(px int)
	SetFrameSource(url string)
	FocusFrame()
	PostToFrame(msg bridge.Message) error
}

// UserLookup reads the registered user from the embedded document.
type UserLookup interface {
	CurrentUser() (flow.User, bool)
}
