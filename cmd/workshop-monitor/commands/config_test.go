package commands

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"workshop-monitor/internal/history"
	"workshop-monitor/internal/navigator"
	"workshop-monitor/internal/statestore"
	"workshop-monitor/lib/configutil"

	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "config.json5"), envLookup(nil))
	require.NoError(t, err)

	require.Equal(t, []string{"Loulé", "Albufeira"}, cfg.Stores)
	require.Equal(t, 360, cfg.IntervalMinutes)
	require.Equal(t, 587, cfg.Smtp.Port)
	require.True(t, *cfg.Smtp.StartTLS)
	require.True(t, *cfg.Browser.Headless)
	require.Equal(t, DriverChrome, cfg.Browser.Driver)
	require.Equal(t, navigator.DefaultControlID, cfg.Form.ControlID)
	require.Equal(t, 20, cfg.Form.TimeoutSeconds)
	require.Equal(t, statestore.BackendJSON, cfg.State.Backend)
	require.True(t, strings.HasSuffix(cfg.State.File, "workshops.json"))
	require.False(t, strings.HasPrefix(cfg.State.File, "~"))

	err = cfg.validate()
	var missing configutil.MissingKeyError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "form.url", missing.Key)
	require.ErrorContains(t, err, "'smtp.host'")
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		form: { url: "https://forms.example.com/jfe/form/SV_1", timeout_seconds: 5 },
		stores: ["Faro"],
		browser: { headless: false, driver: "static" },
		smtp: { host: "smtp.example.com", username: "monitor", password: "secret", from: "monitor@example.com", to: ["me@example.com"] },
	}`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(filepath.Join(dir, "config.json5"), envLookup(map[string]string{
		"MONITORED_STORES": "Loulé,Albufeira",
		"SMTP_PORT":        "2525",
		"SMTP_STARTTLS":    "false",
		"SMTP_TO":          "a@example.com, b@example.com",
		"WORKSHOPS_FILE":   "/var/lib/workshop-monitor/workshops.json",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	require.Equal(t, []string{"Loulé", "Albufeira"}, cfg.Stores)
	require.Equal(t, 2525, cfg.Smtp.Port)
	require.False(t, *cfg.Smtp.StartTLS)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Smtp.To)
	require.False(t, *cfg.Browser.Headless)
	require.Equal(t, DriverStatic, cfg.Browser.Driver)
	require.Equal(t, "/var/lib/workshop-monitor/workshops.json", cfg.State.File)
	require.Equal(t, 5*time.Second, cfg.navigatorOptions().Timeout)
	require.Equal(t, navigator.DefaultPrimarySelector, cfg.navigatorOptions().PrimarySelector)

	smtp := cfg.smtpConfig()
	require.False(t, smtp.StartTLS)
	require.Equal(t, "smtp.example.com", smtp.Host)
}

func TestLoadConfigBadEnv(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "config.json5"), envLookup(map[string]string{
		"HEADLESS_MODE": "maybe",
	}))
	require.ErrorContains(t, err, "HEADLESS_MODE")
}

func TestValidateDriver(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "config.json5"), envLookup(map[string]string{
		"FORM_TO_MONITOR_URL": "https://forms.example.com",
		"SMTP_HOST":           "smtp.example.com",
		"SMTP_USERNAME":       "monitor",
		"SMTP_PASSWORD":       "secret",
		"SMTP_FROM":           "monitor@example.com",
		"SMTP_TO":             "me@example.com",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	cfg.Browser.Driver = "firefox"
	require.ErrorContains(t, cfg.validate(), "firefox")
}

func TestHistoryTable(t *testing.T) {
	state := history.NewWorkshopState()
	now := time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)
	history.Reconcile(state.Bucket("Loulé"), []string{"Costura", "Bordado livre"}, now)
	history.Reconcile(state.Bucket("Albufeira"), []string{"Tricot"}, now)
	state.MarkUpdated(now)

	out := historyTable(state, "Loulé").Render()
	require.Contains(t, out, "Bordado livre")
	require.Contains(t, out, "Costura")
	require.NotContains(t, out, "Tricot")
	require.Less(t, strings.Index(out, "Bordado livre"), strings.Index(out, "Costura"))
}
