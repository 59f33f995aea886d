// Package browser wraps the browser engine behind a small Page interface and
// manages one persistent, fingerprint-masked profile per identity.
package browser

import (
	"context"
	"time"

	"actionrunner/internal/humanizer"
)

// Key names a keyboard chord understood by Page.Press.
type Key string

const (
	KeyPaste     Key = "Control+v"
	KeySubmit    Key = "Control+Enter"
	KeyLineBreak Key = "Shift+Enter"
)

// Page is the subset of browser control the action state machines need.
// Selectors are CSS selectors or XPath expressions.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	// WaitVisible fails with domain.ErrControlNotFound once timeout elapses.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	// Center scrolls sel into view and returns the middle of its box.
	Center(ctx context.Context, sel string) (humanizer.Point, error)
	MouseMove(ctx context.Context, p humanizer.Point) error
	ClickAt(ctx context.Context, p humanizer.Point) error
	Scroll(ctx context.Context, deltaY int) error
	TypeRune(ctx context.Context, r rune) error
	Press(ctx context.Context, k Key) error
	WriteClipboard(ctx context.Context, text string) error
	Screenshot(ctx context.Context, path string) error
	Viewport() humanizer.Viewport
}
