package browser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/humanizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{Browser: config.Browser{ProfilesDir: t.TempDir(), UserAgent: "ua", Locale: "en-US"}}
	return NewManager(cfg, humanizer.New())
}

func TestProfileName(t *testing.T) {
	tests := map[string]string{
		"a@b.com":               "a_b_com",
		" Jane.Doe@Example.org": "jane_doe_example_org",
		"x/y@z.io":              "x_y_z_io",
	}
	for in, want := range tests {
		assert.Equal(t, want, ProfileName(in), in)
	}
}

func TestLockProfileCreatesDirectory(t *testing.T) {
	m := newTestManager(t)
	dir, unlock, err := m.LockProfile("a@b.com")
	require.NoError(t, err)
	defer unlock()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "a_b_com", filepath.Base(dir))
}

func TestLockProfileBusy(t *testing.T) {
	m := newTestManager(t)
	_, unlock, err := m.LockProfile("a@b.com")
	require.NoError(t, err)

	_, _, err = m.LockProfile("a@b.com")
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	// other identities are independent
	_, unlockOther, err := m.LockProfile("c@d.com")
	require.NoError(t, err)
	unlockOther()

	unlock()
	_, unlockAgain, err := m.LockProfile("a@b.com")
	require.NoError(t, err)
	unlockAgain()
}

func TestAllocatorOptionsCarryProfile(t *testing.T) {
	m := newTestManager(t)
	opts := m.allocatorOptions("/tmp/profile")
	assert.Greater(t, len(opts), 20)
}

func TestStealthScriptMasksAutomationSignals(t *testing.T) {
	for _, want := range []string{"webdriver", "plugins", "languages", "permissions.query", "availWidth", "availHeight"} {
		assert.True(t, strings.Contains(StealthJS, want), want)
	}
}
