package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// StealthJS runs before any page script in every document of a session.
//
//go:embed stealth.js
var StealthJS string

const lockFile = ".session.lock"

// Manager opens persistent browsing contexts, one profile directory per identity.
type Manager struct {
	cfg config.Browser
	h   *humanizer.Humanizer
}

func NewManager(cfg *config.Config, h *humanizer.Humanizer) *Manager {
	return &Manager{cfg: cfg.Browser, h: h}
}

// ProfileName is the filesystem-safe directory name for an identity.
func ProfileName(email string) string {
	r := strings.NewReplacer("@", "_", ".", "_", "/", "_", string(filepath.Separator), "_")
	return r.Replace(strings.ToLower(strings.TrimSpace(email)))
}

func (m *Manager) ProfileDir(email string) string {
	return filepath.Join(m.cfg.ProfilesDir, ProfileName(email))
}

// Session is an open browsing context bound to one identity.
type Session struct {
	Page     Page
	Identity string
	Dir      string

	cancel func()
	unlock func()
}

// Close shuts the browser down and releases the profile.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.unlock != nil {
		s.unlock()
	}
}

// Open launches a browser on the identity's profile. It fails with
// domain.ErrSessionBusy when another process holds the profile.
func (m *Manager) Open(ctx context.Context, email string) (*Session, error) {
	dir, unlock, err := m.LockProfile(email)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, m.allocatorOptions(dir)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(f string, a ...any) { log.Debug().Msgf(f, a...) }),
		chromedp.WithErrorf(func(f string, a ...any) { log.Error().Msgf(f, a...) }),
	)
	cancel := func() {
		if err := chromedp.Cancel(tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("browser did not close cleanly")
		}
		cancelTab()
		cancelAlloc()
	}

	vp := humanizer.Viewport{
		Width:  m.h.IntBetween(1260, 1400),
		Height: m.h.IntBetween(780, 860),
	}
	if err := chromedp.Run(tabCtx, m.prepare(vp)); err != nil {
		cancel()
		unlock()
		return nil, fmt.Errorf("start browser for %s: %w", email, err)
	}

	log.Info().Str("profile", dir).Int("width", vp.Width).Int("height", vp.Height).Msg("browser session ready")
	return &Session{
		Page: &cdpPage{
			ctx:        tabCtx,
			navTimeout: m.cfg.NavigationTimeout,
			viewport:   vp,
			pos:        humanizer.Point{X: float64(vp.Width) / 2, Y: float64(vp.Height) / 2},
		},
		Identity: email,
		Dir:      dir,
		cancel:   cancel,
		unlock:   unlock,
	}, nil
}

// LockProfile creates the profile directory if needed and takes an exclusive,
// non-blocking lock on it. The kernel drops the lock when the process dies.
func (m *Manager) LockProfile(email string) (string, func(), error) {
	dir := m.ProfileDir(email)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create profile %s: %w", dir, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, lockFile), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("open profile lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return "", nil, fmt.Errorf("%w: profile %s is in use", domain.ErrSessionBusy, dir)
		}
		return "", nil, fmt.Errorf("lock profile %s: %w", dir, err)
	}

	unlock := func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}
	return dir, unlock, nil
}

func (m *Manager) allocatorOptions(dir string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.UserDataDir(dir),
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.UserAgent(m.cfg.UserAgent),
		chromedp.WindowSize(1280, 800),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("lang", m.cfg.Locale),
	)
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	return opts
}

// prepare installs the evasion script and per-session emulation before the
// first navigation.
func (m *Manager) prepare(vp humanizer.Viewport) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(StealthJS).Do(ctx); err != nil {
			return fmt.Errorf("install stealth script: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if m.cfg.Timezone != "" {
			if err := emulation.SetTimezoneOverride(m.cfg.Timezone).Do(ctx); err != nil {
				log.Warn().Err(err).Str("timezone", m.cfg.Timezone).Msg("timezone override rejected")
			}
		}
		if m.cfg.Locale != "" {
			if err := emulation.SetLocaleOverride().WithLocale(m.cfg.Locale).Do(ctx); err != nil {
				log.Warn().Err(err).Str("locale", m.cfg.Locale).Msg("locale override rejected")
			}
		}

		// without this grant the clipboard write falls back to typing
		perms := []browser.PermissionType{
			browser.PermissionTypeClipboardReadWrite,
			browser.PermissionTypeClipboardSanitizedWrite,
		}
		bctx := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser)
		if err := browser.GrantPermissions(perms).WithOrigin(m.cfg.BaseURL).Do(bctx); err != nil {
			log.Warn().Err(err).Msg("clipboard permission not granted")
		}
		return nil
	})
}
