package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdboard/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Kanban    KanbanConfig      `yaml:"kanban"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Kanban.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	SSE      SSEConfig  `yaml:"sse"`
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

// SSEConfig controls live event delivery. BoardThrottle is the minimum gap
// between board.updated events for one document; zero means the broker default.
type SSEConfig struct {
	BoardThrottle time.Duration `yaml:"board_throttle"`
}

// WorkspaceConfig holds the path to the directory of board documents.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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
//   - "disabled" (default): no authentication required, suitable for local dev.
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

// KanbanConfig is the workspace-wide board configuration. Documents override
// it field by field through their kanban front-matter block.
type KanbanConfig struct {
	Statuses             []string `yaml:"statuses"`
	DoneStatuses         []string `yaml:"done_statuses"`
	DefaultStatus        string   `yaml:"default_status"`
	DefaultDoneStatus    string   `yaml:"default_done_status"`
	SortBy               string   `yaml:"sort_by"`
	SyncCheckboxWithDone *bool    `yaml:"sync_checkbox_with_done"`
}

// Validate validates the kanban configuration. Empty fields fall back to
// the built-in defaults.
func (c *KanbanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Statuses, validation.Each(validation.Required)),
		validation.Field(&c.DoneStatuses, validation.Each(validation.Required)),
		validation.Field(&c.SortBy, validation.In(
			models.SortMarkdown, models.SortPriority, models.SortDue, models.SortAlphabetical,
		).Error("must be one of markdown, priority, due, alphabetical")),
	)
}

// Board resolves the section into a complete board configuration.
func (c *KanbanConfig) Board() models.BoardConfig {
	return models.ResolveConfig(&models.FrontmatterConfig{
		Statuses:             c.Statuses,
		DoneStatuses:         c.DoneStatuses,
		DefaultStatus:        c.DefaultStatus,
		DefaultDoneStatus:    c.DefaultDoneStatus,
		SortBy:               c.SortBy,
		SyncCheckboxWithDone: c.SyncCheckboxWithDone,
	}, models.DefaultBoardConfig())
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			SSE: SSEConfig{
				BoardThrottle: 2 * time.Second,
			},
		},
		Workspace: WorkspaceConfig{
			Path: "./boards",
		},
		SQLite: SQLiteConfig{
			Path: "./mdboard.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
