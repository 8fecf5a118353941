package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/mitchellh/go-homedir"

	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/editor"
	"github.com/starford/daybook/internal/journal"
	"github.com/starford/daybook/internal/storage"
	"github.com/starford/daybook/internal/widget"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Journal  JournalConfig     `yaml:"journal"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Calendar CalendarConfig    `yaml:"calendar"`
	Widget   widget.Config     `yaml:"widget"`
	Editor   EditorConfig      `yaml:"editor"`
}

// Validate validates the configuration and expands "~" in paths.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Calendar.Validate(); err != nil {
		return err
	}
	if err := c.Widget.Validate(); err != nil {
		return fmt.Errorf("widget: %w", err)
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.expandPaths()
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Journal.Path,
		&c.SQLite.Path,
		&c.Calendar.DataFile,
		&c.Calendar.CacheDir,
		&c.Editor.DraftPath,
		&c.Editor.StateFile,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// JournalConfig points at the directory holding entry files.
type JournalConfig struct {
	Path string `yaml:"path"`
	// Pattern is a doublestar glob selecting entry files inside Path.
	Pattern     string `yaml:"pattern"`
	TitleFormat string `yaml:"title_format"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Pattern, validation.Required),
		validation.Field(&c.TitleFormat, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CalendarConfig configures the event source and its cache.
// An empty DataFile means no events.
type CalendarConfig struct {
	DataFile   string `yaml:"data_file"`
	CacheDir   string `yaml:"cache_dir"`
	MaxResults int    `yaml:"max_results"`
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxResults, validation.Min(0), validation.Max(2500)),
	)
}

// EditorConfig configures the "edit" command.
type EditorConfig struct {
	ServerURL  string        `yaml:"server_url"`
	SaveDelay  time.Duration `yaml:"save_delay"`
	StatusHold time.Duration `yaml:"status_hold"`
	DraftPath  string        `yaml:"draft_path"`
	StateFile  string        `yaml:"state_file"`
	Token      string        `yaml:"token"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServerURL, validation.Required, is.URL),
		validation.Field(&c.SaveDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.StatusHold, validation.Min(time.Duration(0))),
		validation.Field(&c.DraftPath, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Journal: JournalConfig{
			Path:        "~/.daybook/journal",
			Pattern:     storage.DefaultPattern,
			TitleFormat: journal.DefaultTitleFormat,
		},
		SQLite: SQLiteConfig{
			Path: "~/.daybook/daybook.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Calendar: CalendarConfig{
			CacheDir:   "~/.daybook/cache",
			MaxResults: calendar.DefaultMaxResults,
		},
		Widget: widget.DefaultConfig(),
		Editor: EditorConfig{
			ServerURL:  "http://localhost:8080",
			SaveDelay:  editor.DefaultSaveDelay,
			StatusHold: editor.DefaultStatusHold,
			DraftPath:  "~/.daybook/draft.html",
			StateFile:  "~/.daybook/url",
		},
	}
}
