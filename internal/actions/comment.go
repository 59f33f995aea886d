package actions

import (
	"context"
	"errors"
	"time"

	"actionrunner/internal/browser"
	"actionrunner/internal/domain"

	"github.com/rs/zerolog/log"
)

// Comment types text into the comment box of the post at postURL.
func (r *Runner) Comment(ctx context.Context, postURL, text string) (msg string, err error) {
	progress := r.progress(domain.ActionComment)
	progress(StagePublishing)
	defer func() {
		if err != nil {
			progress(StageFailed)
		}
	}()

	if err := r.page.Navigate(ctx, postURL); err != nil {
		return "", err
	}
	steps := []func() error{
		func() error { return r.delay(ctx, 3*time.Second, 6*time.Second) },
		func() error { return r.scroll(ctx, r.h.IntBetween(2, 3)) },
		func() error { return r.delay(ctx, time.Second, 3*time.Second) },
		func() error { return r.openCommentBox(ctx) },
		func() error { return r.delay(ctx, time.Second, 2*time.Second) },
		func() error { return r.require(ctx, selCommentEditor, editorTimeout, "debug_comment_editor.png") },
		func() error { return r.click(ctx, selCommentEditor) },
		func() error { return r.typeText(ctx, text) },
		func() error { return r.delay(ctx, sec(1.5), 3*time.Second) },
		func() error { return r.submitComment(ctx) },
		func() error { return r.delay(ctx, 2*time.Second, 4*time.Second) },
	}
	if err := runSteps(steps); err != nil {
		return "", err
	}
	progress(StagePublished)
	return "Comment posted successfully", nil
}

func (r *Runner) openCommentBox(ctx context.Context) error {
	err := r.page.WaitVisible(ctx, selCommentBox, 10*time.Second)
	if err == nil {
		return r.click(ctx, selCommentBox)
	}
	if !errors.Is(err, domain.ErrControlNotFound) {
		return err
	}
	log.Info().Msg("comment box not found, using the comment button")
	if err := r.require(ctx, selCommentFallback, 10*time.Second, "debug_comment_box.png"); err != nil {
		return err
	}
	return r.click(ctx, selCommentFallback)
}

func (r *Runner) submitComment(ctx context.Context) error {
	err := r.page.WaitVisible(ctx, selCommentSubmit, 8*time.Second)
	if err == nil {
		return r.click(ctx, selCommentSubmit)
	}
	if !errors.Is(err, domain.ErrControlNotFound) {
		return err
	}
	log.Info().Msg("comment submit button not found, using keyboard shortcut")
	return r.page.Press(ctx, browser.KeySubmit)
}
