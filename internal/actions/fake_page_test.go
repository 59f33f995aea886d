package actions

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"actionrunner/internal/browser"
	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"
)

// fakePage is an in-memory browser.Page. Navigation follows routes, only
// selectors in visible can be found, and clicks may trigger onClick hooks.
type fakePage struct {
	mu sync.Mutex

	url          string
	routes       map[string]string
	navErr       map[string]error
	visible      map[string]bool
	onClick      map[string]func(f *fakePage)
	clipboardErr error

	centers   map[string]humanizer.Point
	lastFound string

	visited   []string
	clicked   []string
	hovered   []string
	pressed   []browser.Key
	typed     strings.Builder
	clipboard string
	pasted    string
	shots     []string
	moves     int
	scrolled  int
}

var _ browser.Page = (*fakePage)(nil)

func newFakePage() *fakePage {
	return &fakePage{
		url:     "about:blank",
		routes:  map[string]string{},
		navErr:  map[string]error{},
		visible: map[string]bool{},
		onClick: map[string]func(f *fakePage){},
		centers: map[string]humanizer.Point{},
	}
}

func (f *fakePage) show(sels ...string) *fakePage {
	for _, s := range sels {
		f.visible[s] = true
	}
	return f
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = append(f.visited, url)
	if err := f.navErr[url]; err != nil {
		return err
	}
	if to, ok := f.routes[url]; ok {
		f.url = to
	} else {
		f.url = url
	}
	return nil
}

func (f *fakePage) Location(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakePage) WaitVisible(_ context.Context, sel string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.visible[sel] {
		return fmt.Errorf("%w: %s not visible after %s", domain.ErrControlNotFound, sel, timeout)
	}
	return nil
}

func (f *fakePage) Center(_ context.Context, sel string) (humanizer.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.visible[sel] {
		return humanizer.Point{}, fmt.Errorf("%w: %s", domain.ErrControlNotFound, sel)
	}
	p, ok := f.centers[sel]
	if !ok {
		n := float64(len(f.centers) + 1)
		p = humanizer.Point{X: 50 + 37*n, Y: 40 + 23*n}
		f.centers[sel] = p
	}
	f.lastFound = sel
	return p, nil
}

func (f *fakePage) MouseMove(_ context.Context, p humanizer.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves++
	for sel, c := range f.centers {
		if c == p && sel == f.lastFound {
			f.hovered = append(f.hovered, sel)
		}
	}
	return nil
}

func (f *fakePage) ClickAt(_ context.Context, p humanizer.Point) error {
	f.mu.Lock()
	sel := f.lastFound
	if f.centers[sel] != p {
		f.mu.Unlock()
		return errors.New("click missed the last located control")
	}
	f.clicked = append(f.clicked, sel)
	hook := f.onClick[sel]
	f.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *fakePage) Scroll(_ context.Context, deltaY int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolled += deltaY
	return nil
}

func (f *fakePage) TypeRune(_ context.Context, r rune) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed.WriteRune(r)
	return nil
}

func (f *fakePage) Press(_ context.Context, k browser.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = append(f.pressed, k)
	switch k {
	case browser.KeyPaste:
		f.pasted += f.clipboard
	case browser.KeyLineBreak:
		f.typed.WriteRune('\n')
	}
	return nil
}

func (f *fakePage) WriteClipboard(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clipboardErr != nil {
		return f.clipboardErr
	}
	f.clipboard = text
	return nil
}

func (f *fakePage) Screenshot(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shots = append(f.shots, path)
	return nil
}

func (f *fakePage) Viewport() humanizer.Viewport {
	return humanizer.Viewport{Width: 1280, Height: 800}
}

func (f *fakePage) didClick(sel string) bool {
	for _, s := range f.clicked {
		if s == sel {
			return true
		}
	}
	return false
}

type recorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *recorder) Progress(stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	return nil
}

const testBase = "https://app.test"

func testConfig() *config.Config {
	return &config.Config{
		Browser: config.Browser{
			BaseURL:       testBase,
			ScreenshotDir: "/tmp/shots",
		},
		Behavior: config.Behavior{
			MinDelay:        time.Second,
			MaxDelay:        2 * time.Second,
			ProgressActions: []string{"post"},
		},
	}
}

func testHumanizer() *humanizer.Humanizer {
	return humanizer.NewWithSource(rand.NewSource(11), nil)
}

func newTestRunner(page *fakePage, rep Reporter) *Runner {
	return NewRunner(page, testHumanizer(), testConfig(), rep)
}

// newResolvingHumanizer moves the page to resolved during the long wait a
// pending challenge causes, as a person completing it would.
func newResolvingHumanizer(f *fakePage, resolved string) *humanizer.Humanizer {
	return humanizer.NewWithSource(rand.NewSource(5), func(ctx context.Context, d time.Duration) error {
		if d >= 25*time.Second {
			f.mu.Lock()
			f.url = resolved
			f.mu.Unlock()
		}
		return ctx.Err()
	})
}
