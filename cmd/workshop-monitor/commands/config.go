package commands

import (
	"fmt"
	"os"
	"time"

	"workshop-monitor/internal/browser"
	"workshop-monitor/internal/navigator"
	"workshop-monitor/internal/notify"
	"workshop-monitor/internal/statestore"
	"workshop-monitor/lib/configutil"
	"workshop-monitor/lib/telemetry"

	"dario.cat/mergo"
)

type FormConfig struct {
	Url               string `json:"url"`
	ControlID         string `json:"control_id"`
	ControlLabel      string `json:"control_label"`
	PrimarySelector   string `json:"primary_selector"`
	SecondarySelector string `json:"secondary_selector"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
}

const (
	DriverChrome = "chrome"
	DriverStatic = "static"
)

type BrowserConfig struct {
	// Driver is "chrome" (default) or "static".
	Driver      string `json:"driver"`
	Headless    *bool  `json:"headless"`
	ExecPath    string `json:"exec_path"`
	RemoteURL   string `json:"remote_url"`
	ProfileRoot string `json:"profile_root"`
	// DumpDir receives every page fetched by the static driver, for debugging selectors.
	DumpDir string `json:"dump_dir"`
}

type SmtpConfig struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	StartTLS *bool    `json:"starttls"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

type Config struct {
	Form            FormConfig        `json:"form"`
	Stores          []string          `json:"stores"`
	IntervalMinutes int               `json:"interval_minutes"`
	State           statestore.Config `json:"state"`
	Browser         BrowserConfig     `json:"browser"`
	Smtp            SmtpConfig        `json:"smtp"`
	// Telemetry takes precedence over a telemetry.json5 found on disk.
	Telemetry *telemetry.Config `json:"telemetry"`
}

func defaultConfig() Config {
	headless := true
	starttls := true
	return Config{
		Form: FormConfig{
			ControlID:         navigator.DefaultControlID,
			ControlLabel:      navigator.DefaultControlLabel,
			PrimarySelector:   navigator.DefaultPrimarySelector,
			SecondarySelector: navigator.DefaultSecondarySelector,
			TimeoutSeconds:    int(navigator.DefaultTimeout / time.Second),
		},
		Stores:          []string{"Loulé", "Albufeira"},
		IntervalMinutes: 360,
		State: statestore.Config{
			Backend: statestore.BackendJSON,
		},
		Browser: BrowserConfig{
			Driver:   DriverChrome,
			Headless: &headless,
		},
		Smtp: SmtpConfig{
			Port:     587,
			StartTLS: &starttls,
		},
	}
}

func envBindings(cfg *Config) []configutil.EnvBinding {
	return []configutil.EnvBinding{
		{Name: "FORM_TO_MONITOR_URL", Apply: configutil.String(&cfg.Form.Url)},
		{Name: "MONITORED_STORES", Apply: configutil.List(&cfg.Stores)},
		{Name: "WORKSHOPS_FILE", Apply: configutil.String(&cfg.State.File)},
		{Name: "HEADLESS_MODE", Apply: configutil.OptionalBool(&cfg.Browser.Headless)},
		{Name: "CHROME_BINARY", Apply: configutil.String(&cfg.Browser.ExecPath)},
		{Name: "CHROME_REMOTE_URL", Apply: configutil.String(&cfg.Browser.RemoteURL)},
		{Name: "SMTP_HOST", Apply: configutil.String(&cfg.Smtp.Host)},
		{Name: "SMTP_PORT", Apply: configutil.Int(&cfg.Smtp.Port)},
		{Name: "SMTP_STARTTLS", Apply: configutil.OptionalBool(&cfg.Smtp.StartTLS)},
		{Name: "SMTP_USERNAME", Apply: configutil.String(&cfg.Smtp.Username)},
		{Name: "SMTP_PASSWORD", Apply: configutil.String(&cfg.Smtp.Password)},
		{Name: "SMTP_FROM", Apply: configutil.String(&cfg.Smtp.From)},
		{Name: "SMTP_TO", Apply: configutil.List(&cfg.Smtp.To)},
	}
}

// loadConfig layers the config file (when there is one) over the defaults and the
// environment over both. It does not check for required values.
func loadConfig(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	err = configutil.ApplyEnv(lookupEnv, envBindings(&cfg))
	if err != nil {
		return Config{}, err
	}

	err = mergo.Merge(&cfg, defaultConfig())
	if err != nil {
		return Config{}, err
	}

	if cfg.State.File == "" {
		cfg.State.File = "~/workshops.json"
		if cfg.State.Backend == statestore.BackendSQLite {
			cfg.State.File = "~/workshops.db"
		}
	}
	cfg.State.File, err = configutil.ExpandPath(cfg.State.File)
	if err != nil {
		return Config{}, err
	}
	cfg.Browser.ProfileRoot, err = configutil.ExpandPath(cfg.Browser.ProfileRoot)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate reports every value the monitor cannot run without.
func (c Config) validate() error {
	err := configutil.Require(
		configutil.Present("form.url", c.Form.Url),
		configutil.PresentList("stores", c.Stores),
		configutil.Present("smtp.host", c.Smtp.Host),
		configutil.Present("smtp.username", c.Smtp.Username),
		configutil.Present("smtp.password", c.Smtp.Password),
		configutil.Present("smtp.from", c.Smtp.From),
		configutil.PresentList("smtp.to", c.Smtp.To),
	)
	if err != nil {
		return err
	}
	switch c.Browser.Driver {
	case DriverChrome, DriverStatic:
	default:
		return fmt.Errorf("unknown browser driver '%s'", c.Browser.Driver)
	}
	if c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval must be a positive number of minutes, got %d", c.IntervalMinutes)
	}
	return nil
}

func (c Config) navigatorOptions() navigator.Options {
	return navigator.Options{
		ControlID:         c.Form.ControlID,
		ControlLabel:      c.Form.ControlLabel,
		PrimarySelector:   c.Form.PrimarySelector,
		SecondarySelector: c.Form.SecondarySelector,
		Timeout:           time.Duration(c.Form.TimeoutSeconds) * time.Second,
	}
}

func (c Config) smtpConfig() notify.SmtpConfig {
	return notify.SmtpConfig{
		Host:     c.Smtp.Host,
		Port:     c.Smtp.Port,
		StartTLS: *c.Smtp.StartTLS,
		Username: c.Smtp.Username,
		Password: c.Smtp.Password,
		From:     c.Smtp.From,
		To:       c.Smtp.To,
	}
}

func (c Config) chromeOptions() browser.ChromeOptions {
	return browser.ChromeOptions{
		Headless:    *c.Browser.Headless,
		ExecPath:    c.Browser.ExecPath,
		RemoteURL:   c.Browser.RemoteURL,
		ProfileRoot: c.Browser.ProfileRoot,
	}
}
