// Package actions holds the login and action state machines that drive the
// target web application through a browser.Page.
package actions

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"actionrunner/internal/browser"
	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"

	"github.com/rs/zerolog/log"
)

// Progress stages mirrored to the external status store.
const (
	StagePublishing = "publishing"
	StagePublished  = "published"
	StageFailed     = "failed"
)

// Reporter receives advisory progress stages.
type Reporter interface {
	Progress(stage string) error
}

// Runner executes actions on one page for one identity. It is not safe for
// concurrent use.
type Runner struct {
	page     browser.Page
	h        *humanizer.Humanizer
	behavior config.Behavior
	shotDir  string
	urls     urls
	report   Reporter
	cursor   humanizer.Point
}

type urls struct {
	feed  string
	login string
}

func NewRunner(page browser.Page, h *humanizer.Humanizer, cfg *config.Config, report Reporter) *Runner {
	base := strings.TrimRight(cfg.Browser.BaseURL, "/")
	vp := page.Viewport()
	return &Runner{
		page:     page,
		h:        h,
		behavior: cfg.Behavior,
		shotDir:  cfg.Browser.ScreenshotDir,
		urls:     urls{feed: base + "/feed/", login: base + "/login"},
		report:   report,
		cursor:   humanizer.Point{X: float64(vp.Width) / 2, Y: float64(vp.Height) / 2},
	}
}

// Run performs the job's action on an authenticated page.
func (r *Runner) Run(ctx context.Context, job domain.Job) (string, error) {
	switch job.Action {
	case domain.ActionPost:
		return r.Post(ctx, job.Content)
	case domain.ActionComment:
		return r.Comment(ctx, job.PostURL, job.Comment)
	case domain.ActionReact:
		return r.React(ctx, job.PostURL, job.ReactionOrDefault())
	}
	return "", domain.UnknownActionError{Name: string(job.Action)}
}

// progress returns a stage emitter for the action, or a no-op when the
// action is not configured to report progress.
func (r *Runner) progress(a domain.Action) func(stage string) {
	if r.report == nil || !r.behavior.ReportsProgress(a) {
		return func(string) {}
	}
	return func(stage string) {
		if err := r.report.Progress(stage); err != nil {
			log.Warn().Err(err).Str("stage", stage).Msg("progress not reported")
		}
	}
}

func (r *Runner) delay(ctx context.Context, min, max time.Duration) error {
	_, err := r.h.Delay(ctx, min, max)
	return err
}

func sec(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// moveTo glides the pointer from its last position to p.
func (r *Runner) moveTo(ctx context.Context, p humanizer.Point) error {
	for _, st := range r.h.PointerPath(r.cursor, p, r.page.Viewport()) {
		if err := r.h.Sleep(ctx, st.Delay); err != nil {
			return err
		}
		if err := r.page.MouseMove(ctx, st.Point); err != nil {
			return err
		}
		r.cursor = st.Point
	}
	return nil
}

// wander moves the pointer to a random spot away from the viewport edges.
func (r *Runner) wander(ctx context.Context) error {
	vp := r.page.Viewport()
	target := humanizer.Point{
		X: float64(r.h.IntBetween(100, max(vp.Width-100, 100))),
		Y: float64(r.h.IntBetween(100, max(vp.Height-100, 100))),
	}
	return r.moveTo(ctx, target)
}

func (r *Runner) hover(ctx context.Context, sel string) error {
	p, err := r.page.Center(ctx, sel)
	if err != nil {
		return err
	}
	return r.moveTo(ctx, p)
}

func (r *Runner) click(ctx context.Context, sel string) error {
	p, err := r.page.Center(ctx, sel)
	if err != nil {
		return err
	}
	if err := r.moveTo(ctx, p); err != nil {
		return err
	}
	if err := r.delay(ctx, 80*time.Millisecond, 250*time.Millisecond); err != nil {
		return err
	}
	return r.page.ClickAt(ctx, p)
}

func (r *Runner) scroll(ctx context.Context, segments int) error {
	for _, seg := range r.h.ScrollTrace(segments) {
		for _, st := range seg.Steps {
			if err := r.page.Scroll(ctx, st.DeltaY); err != nil {
				return err
			}
			if err := r.h.Sleep(ctx, st.Pause); err != nil {
				return err
			}
		}
		if err := r.h.Sleep(ctx, seg.ReadPause); err != nil {
			return err
		}
	}
	return nil
}

// typeText types into the focused element following a typing trace.
func (r *Runner) typeText(ctx context.Context, text string) error {
	for _, k := range r.h.TypingTrace(text) {
		if err := r.h.Sleep(ctx, k.PreDelay); err != nil {
			return err
		}
		var err error
		if k.LineBreak {
			err = r.page.Press(ctx, browser.KeyLineBreak)
		} else {
			err = r.page.TypeRune(ctx, k.Char)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// typeInto focuses sel before typing into it.
func (r *Runner) typeInto(ctx context.Context, sel, text string, timeout time.Duration) error {
	if err := r.page.WaitVisible(ctx, sel, timeout); err != nil {
		return err
	}
	if err := r.click(ctx, sel); err != nil {
		return err
	}
	return r.typeText(ctx, text)
}

// require waits for sel and, when it never shows up, saves a screenshot
// named shot before returning the error.
func (r *Runner) require(ctx context.Context, sel string, timeout time.Duration, shot string) error {
	err := r.page.WaitVisible(ctx, sel, timeout)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrControlNotFound) && shot != "" {
		r.screenshot(ctx, shot)
	}
	return err
}

func (r *Runner) screenshot(ctx context.Context, name string) {
	path := filepath.Join(r.shotDir, name)
	if err := r.page.Screenshot(ctx, path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("diagnostic screenshot failed")
		return
	}
	log.Info().Str("path", path).Msg("diagnostic screenshot saved")
}

func (r *Runner) location(ctx context.Context) string {
	url, err := r.page.Location(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("location unavailable")
	}
	return url
}
