package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// cdpPage drives one tab through chromedp.
type cdpPage struct {
	ctx        context.Context
	navTimeout time.Duration
	viewport   humanizer.Viewport

	mu  sync.Mutex
	pos humanizer.Point
}

var _ Page = (*cdpPage)(nil)

// run executes actions on the tab while honouring the caller's deadline.
func (p *cdpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	nctx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	if err := p.run(nctx, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %s after %s", domain.ErrNavigationTimeout, url, p.navTimeout)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *cdpPage) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

func (p *cdpPage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.run(wctx, chromedp.WaitVisible(sel, chromedp.BySearch)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %s not visible after %s", domain.ErrControlNotFound, sel, timeout)
		}
		return err
	}
	return nil
}

func (p *cdpPage) Center(ctx context.Context, sel string) (humanizer.Point, error) {
	var box *dom.BoxModel
	err := p.run(ctx,
		chromedp.ScrollIntoView(sel, chromedp.BySearch),
		chromedp.Dimensions(sel, &box, chromedp.BySearch),
	)
	if err != nil {
		return humanizer.Point{}, fmt.Errorf("locate %s: %w", sel, err)
	}
	if box == nil || len(box.Content) < 8 {
		return humanizer.Point{}, fmt.Errorf("%w: %s has no box", domain.ErrControlNotFound, sel)
	}
	q := box.Content
	return humanizer.Point{
		X: (q[0] + q[2] + q[4] + q[6]) / 4,
		Y: (q[1] + q[3] + q[5] + q[7]) / 4,
	}, nil
}

func (p *cdpPage) MouseMove(ctx context.Context, pt humanizer.Point) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y).Do(ctx)
	}))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.pos = pt
	p.mu.Unlock()
	return nil
}

func (p *cdpPage) ClickAt(ctx context.Context, pt humanizer.Point) error {
	if err := p.run(ctx, chromedp.MouseClickXY(pt.X, pt.Y)); err != nil {
		return fmt.Errorf("click at %.0f,%.0f: %w", pt.X, pt.Y, err)
	}
	p.mu.Lock()
	p.pos = pt
	p.mu.Unlock()
	return nil
}

func (p *cdpPage) Scroll(ctx context.Context, deltaY int) error {
	p.mu.Lock()
	pt := p.pos
	p.mu.Unlock()
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, pt.X, pt.Y).
			WithDeltaX(0).
			WithDeltaY(float64(deltaY)).
			Do(ctx)
	}))
}

func (p *cdpPage) TypeRune(ctx context.Context, r rune) error {
	return p.run(ctx, chromedp.KeyEvent(string(r)))
}

func (p *cdpPage) Press(ctx context.Context, k Key) error {
	switch k {
	case KeyLineBreak:
		return p.run(ctx, chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierShift)))
	case KeySubmit:
		return p.run(ctx, chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierCtrl)))
	case KeyPaste:
		// a synthetic Ctrl+V only pastes when the editing command is attached
		return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			down := input.DispatchKeyEvent(input.KeyDown).
				WithModifiers(input.ModifierCtrl).
				WithKey("v").
				WithCode("KeyV").
				WithWindowsVirtualKeyCode(86).
				WithCommands([]string{"paste"})
			if err := down.Do(ctx); err != nil {
				return err
			}
			return input.DispatchKeyEvent(input.KeyUp).
				WithModifiers(input.ModifierCtrl).
				WithKey("v").
				WithCode("KeyV").
				WithWindowsVirtualKeyCode(86).
				Do(ctx)
		}))
	}
	return fmt.Errorf("unsupported key %q", k)
}

func (p *cdpPage) WriteClipboard(ctx context.Context, text string) error {
	quoted, err := json.Marshal(text)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`navigator.clipboard.writeText(%s).then(() => true)`, quoted)

	var ok bool
	err = p.run(ctx, chromedp.Evaluate(script, &ok, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true).WithUserGesture(true)
	}))
	if err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	if !ok {
		return errors.New("clipboard write: rejected")
	}
	return nil
}

func (p *cdpPage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

func (p *cdpPage) Viewport() humanizer.Viewport { return p.viewport }
