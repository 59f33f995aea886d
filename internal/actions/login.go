package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"actionrunner/internal/domain"

	"github.com/rs/zerolog/log"
)

type LoginState string

const (
	LoginCheckingSession  LoginState = "checking_session"
	LoginCredentialEntry  LoginState = "credential_entry"
	LoginChallengePending LoginState = "challenge_pending"
	LoginAuthenticated    LoginState = "authenticated"
	LoginFailed           LoginState = "failed"
)

const loginFieldTimeout = 15 * time.Second

// Login establishes an authenticated session, reusing the profile's cookies
// when they are still valid. It returns the terminal state reached.
func (r *Runner) Login(ctx context.Context, email, password string) (LoginState, error) {
	state := LoginCheckingSession
	var url string
	for {
		log.Debug().Str("state", string(state)).Msg("login")
		var err error
		switch state {
		case LoginCheckingSession:
			state, err = r.checkSession(ctx, email)
		case LoginCredentialEntry:
			state, url, err = r.enterCredentials(ctx, email, password)
		case LoginChallengePending:
			log.Warn().Msg("challenge detected, waiting for manual resolution")
			if err = r.delay(ctx, 25*time.Second, 35*time.Second); err == nil {
				url = r.location(ctx)
				state = LoginFailed
				if strings.Contains(url, "feed") {
					state = LoginAuthenticated
				}
			}
		case LoginAuthenticated:
			return state, nil
		case LoginFailed:
			log.Error().Str("url", url).Msg("login failed")
			return state, fmt.Errorf("%w: check credentials or resolve the challenge manually", domain.ErrLoginFailed)
		}
		if err != nil {
			return state, err
		}
	}
}

func (r *Runner) checkSession(ctx context.Context, email string) (LoginState, error) {
	if err := r.page.Navigate(ctx, r.urls.feed); err != nil {
		return LoginCheckingSession, err
	}
	if err := r.delay(ctx, 2*time.Second, 4*time.Second); err != nil {
		return LoginCheckingSession, err
	}
	if sessionActive(r.location(ctx)) {
		log.Info().Str("email", email).Msg("session active")
		return LoginAuthenticated, nil
	}
	return LoginCredentialEntry, nil
}

func (r *Runner) enterCredentials(ctx context.Context, email, password string) (LoginState, string, error) {
	log.Info().Str("email", email).Msg("logging in")
	steps := []func() error{
		func() error { return r.page.Navigate(ctx, r.urls.login) },
		func() error { return r.delay(ctx, sec(1.5), 3*time.Second) },
		func() error { return r.wander(ctx) },
		func() error { return r.typeInto(ctx, selUsername, email, loginFieldTimeout) },
		func() error { return r.delay(ctx, sec(0.8), 2*time.Second) },
		func() error { return r.typeInto(ctx, selPassword, password, loginFieldTimeout) },
		func() error { return r.delay(ctx, sec(0.5), sec(1.5)) },
		func() error { return r.require(ctx, selLoginSubmit, loginFieldTimeout, "debug_login.png") },
		func() error { return r.click(ctx, selLoginSubmit) },
		func() error { return r.delay(ctx, 4*time.Second, 7*time.Second) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return LoginCredentialEntry, "", err
		}
	}

	url := r.location(ctx)
	return classifyLogin(url), url, nil
}

// sessionActive reports whether url is inside the authenticated feed.
func sessionActive(url string) bool {
	return strings.Contains(url, "/feed") &&
		!strings.Contains(url, "login") &&
		!strings.Contains(url, "authwall")
}

func classifyLogin(url string) LoginState {
	switch {
	case strings.Contains(url, "feed"), strings.Contains(url, "mynetwork"), strings.Contains(url, "jobs"):
		return LoginAuthenticated
	case strings.Contains(url, "checkpoint"), strings.Contains(url, "challenge"):
		return LoginChallengePending
	}
	return LoginFailed
}
