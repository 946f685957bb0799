// Package config loads, defaults and validates the smartblinds configuration.
// Values come from a YAML file and SMARTBLINDS_* environment variables.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the root configuration structure.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Actuator    ActuatorConfig    `mapstructure:"actuator"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Messages    MessagesConfig    `mapstructure:"messages"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	Path             string        `mapstructure:"path"              validate:"required"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"min=100ms,max=5m"`
}

type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"             validate:"required_if=Enabled true"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"         validate:"required_if=Enabled true"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required_if=Enabled true"`
	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

type ActuatorConfig struct {
	Driver      string        `mapstructure:"driver"       validate:"oneof=mock"`
	InitialOpen bool          `mapstructure:"initial_open"`
	MoveDelay   time.Duration `mapstructure:"move_delay"   validate:"min=0,max=5m"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=0,max=10m"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MaintenanceConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds the user-facing Telegram replies.
type MessagesConfig struct {
	Welcome              string `mapstructure:"welcome"                validate:"required"`
	Help                 string `mapstructure:"help"                   validate:"required"`
	ErrorUnauthorizedMsg string `mapstructure:"error_unauthorized_msg" validate:"required"`
	ErrorGeneralMsg      string `mapstructure:"error_general_msg"      validate:"required"`
	StatusOpenMsg        string `mapstructure:"status_open_msg"        validate:"required"`
	StatusClosedMsg      string `mapstructure:"status_closed_msg"      validate:"required"`
	NoActionsMsg         string `mapstructure:"no_actions_msg"         validate:"required"`
	ActionsHeaderMsg     string `mapstructure:"actions_header_msg"     validate:"required"`
	AddActionUsageMsg    string `mapstructure:"add_action_usage_msg"   validate:"required"`
	ActionCreatedMsg     string `mapstructure:"action_created_msg"     validate:"required"`
	ActionConflictMsg    string `mapstructure:"action_conflict_msg"    validate:"required"`
	DeleteActionUsageMsg string `mapstructure:"delete_action_usage_msg" validate:"required"`
	ActionDeletedMsg     string `mapstructure:"action_deleted_msg"     validate:"required"`
	ActionNotFoundMsg    string `mapstructure:"action_not_found_msg"   validate:"required"`
}
