package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"actionrunner/internal/domain"
)

// React applies reaction to the post at postURL. The default reaction is a
// direct click; others are picked from the hover menu.
func (r *Runner) React(ctx context.Context, postURL, reaction string) (msg string, err error) {
	progress := r.progress(domain.ActionReact)
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
		func() error { return r.delay(ctx, 3*time.Second, 5*time.Second) },
		func() error { return r.scroll(ctx, r.h.IntBetween(1, 3)) },
		func() error { return r.delay(ctx, sec(1.5), 3*time.Second) },
	}
	if err := runSteps(steps); err != nil {
		return "", err
	}

	if err := r.require(ctx, selReactTrigger, 10*time.Second, "debug_react.png"); err != nil {
		if errors.Is(err, domain.ErrControlNotFound) {
			return "", fmt.Errorf("%w: could not find react button on: %s", domain.ErrControlNotFound, postURL)
		}
		return "", err
	}

	if reaction == "like" {
		if err := r.click(ctx, selReactTrigger); err != nil {
			return "", err
		}
	} else {
		sel := reactionSelector(ReactionLabel(reaction))
		steps := []func() error{
			func() error { return r.hover(ctx, selReactTrigger) },
			func() error { return r.delay(ctx, sec(1.5), sec(2.5)) },
			func() error { return r.require(ctx, sel, 5*time.Second, "debug_reaction_picker.png") },
			func() error { return r.click(ctx, sel) },
		}
		if err := runSteps(steps); err != nil {
			return "", err
		}
	}

	if err := r.delay(ctx, 2*time.Second, 4*time.Second); err != nil {
		return "", err
	}
	progress(StagePublished)
	return fmt.Sprintf("Reacted with '%s' successfully", reaction), nil
}
