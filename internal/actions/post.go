package actions

import (
	"context"
	"strings"
	"time"

	"actionrunner/internal/browser"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"

	"github.com/rs/zerolog/log"
)

const (
	startPostTimeout = 15 * time.Second
	editorTimeout    = 10 * time.Second
	postBtnTimeout   = 10 * time.Second
)

// Post publishes content from the home feed. Any failure emits the failed
// stage before it is returned.
func (r *Runner) Post(ctx context.Context, content string) (msg string, err error) {
	progress := r.progress(domain.ActionPost)
	progress(StagePublishing)
	defer func() {
		if err != nil {
			progress(StageFailed)
		}
	}()

	if err := r.page.Navigate(ctx, r.urls.feed); err != nil {
		return "", err
	}
	steps := []func() error{
		func() error { return r.delay(ctx, 3*time.Second, 5*time.Second) },
		func() error { return r.scroll(ctx, r.h.IntBetween(2, 3)) },
		func() error { return r.delay(ctx, time.Second, 2*time.Second) },
		func() error { return r.wander(ctx) },

		func() error { return r.require(ctx, selStartPost, startPostTimeout, "debug_start_post.png") },
		func() error { return r.wander(ctx) },
		func() error { return r.delay(ctx, sec(0.5), sec(1.5)) },
		func() error { return r.click(ctx, selStartPost) },
		func() error { return r.delay(ctx, 2*time.Second, 3*time.Second) },

		func() error { return r.require(ctx, selPostEditor, editorTimeout, "debug_editor.png") },
		func() error { return r.delay(ctx, sec(0.8), sec(1.5)) },
		func() error { return r.click(ctx, selPostEditor) },
		func() error { return r.delay(ctx, sec(0.5), time.Second) },
	}
	if err := runSteps(steps); err != nil {
		return "", err
	}

	if err := r.paste(ctx, content); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn().Err(err).Msg("paste failed, falling back to typing")
		if err := r.typeLiteral(ctx, content); err != nil {
			return "", err
		}
	}

	steps = []func() error{
		func() error { return r.delay(ctx, 2*time.Second, 4*time.Second) },
		func() error { return r.require(ctx, selPostSubmit, postBtnTimeout, "debug_post_btn.png") },
		func() error { return r.wander(ctx) },
		func() error { return r.delay(ctx, sec(0.5), sec(1.5)) },
		func() error { return r.click(ctx, selPostSubmit) },
		func() error { return r.delay(ctx, 5*time.Second, 8*time.Second) },
	}
	if err := runSteps(steps); err != nil {
		return "", err
	}

	url := r.location(ctx)
	log.Info().Str("url", url).Msg("post submitted")
	progress(StagePublished)
	if strings.Contains(url, "feed") {
		return "Post published successfully", nil
	}
	return "Post submitted, verify on LinkedIn", nil
}

// paste puts content on the clipboard and pastes it into the focused editor.
func (r *Runner) paste(ctx context.Context, content string) error {
	steps := []func() error{
		func() error { return r.page.WriteClipboard(ctx, content) },
		func() error { return r.delay(ctx, sec(0.5), time.Second) },
		func() error { return r.click(ctx, selPostEditor) },
		func() error { return r.delay(ctx, sec(0.3), sec(0.8)) },
		func() error { return r.page.Press(ctx, browser.KeyPaste) },
		func() error { return r.delay(ctx, time.Second, 2*time.Second) },
	}
	return runSteps(steps)
}

// typeLiteral types content character by character, one paragraph per line.
func (r *Runner) typeLiteral(ctx context.Context, content string) error {
	paragraphs := strings.Split(humanizer.NormalizeLineEndings(content), "\n")
	for i, para := range paragraphs {
		if strings.TrimSpace(para) != "" {
			for _, c := range para {
				if err := r.page.TypeRune(ctx, c); err != nil {
					return err
				}
				if err := r.delay(ctx, 50*time.Millisecond, 150*time.Millisecond); err != nil {
					return err
				}
			}
		}
		if i < len(paragraphs)-1 {
			if err := r.page.Press(ctx, browser.KeyLineBreak); err != nil {
				return err
			}
			if err := r.delay(ctx, sec(0.2), sec(0.5)); err != nil {
				return err
			}
		}
	}
	return nil
}

func runSteps(steps []func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
