package configutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Url    string   `json:"url"`
	Stores []string `json:"stores"`
	Smtp   struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"smtp"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// comments are allowed
		url: "https://example.com/form",
		stores: ["Loulé"],
		smtp: { host: "smtp.example.com", port: 587 },
	}`), 0600)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		smtp: { port: 2525 },
	}`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://example.com/form", cfg.Url)
	require.Equal(t, []string{"Loulé"}, cfg.Stores)
	require.Equal(t, "smtp.example.com", cfg.Smtp.Host)
	require.Equal(t, 2525, cfg.Smtp.Port)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestApplyEnv(t *testing.T) {
	var cfg testConfig
	env := map[string]string{
		"FORM_URL":  "https://example.com/other",
		"STORES":    "Loulé, Albufeira,,",
		"SMTP_PORT": "465",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	err := ApplyEnv(lookup, []EnvBinding{
		{Name: "FORM_URL", Apply: String(&cfg.Url)},
		{Name: "STORES", Apply: List(&cfg.Stores)},
		{Name: "SMTP_PORT", Apply: Int(&cfg.Smtp.Port)},
		{Name: "SMTP_HOST", Apply: String(&cfg.Smtp.Host)},
	})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://example.com/other", cfg.Url)
	require.Equal(t, []string{"Loulé", "Albufeira"}, cfg.Stores)
	require.Equal(t, 465, cfg.Smtp.Port)
	require.Equal(t, "", cfg.Smtp.Host)

	env["SMTP_PORT"] = "not-a-number"
	err = ApplyEnv(lookup, []EnvBinding{{Name: "SMTP_PORT", Apply: Int(&cfg.Smtp.Port)}})
	require.ErrorContains(t, err, "SMTP_PORT")
}

func TestRequire(t *testing.T) {
	require.NoError(t, Require(Present("form.url", "x"), PresentList("stores", []string{"a"})))

	err := Require(
		Present("form.url", "  "),
		Present("smtp.host", "smtp.example.com"),
		PresentList("stores", nil),
	)
	require.Error(t, err)
	require.ErrorContains(t, err, "'form.url'")
	require.ErrorContains(t, err, "'stores'")
	require.NotContains(t, err.Error(), "smtp.host")

	var missing MissingKeyError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "form.url", missing.Key)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	p, err := ExpandPath("~/workshops.json")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, filepath.Join(home, "workshops.json"), p)

	p, err = ExpandPath("/tmp/workshops.json")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "/tmp/workshops.json", p)
}
