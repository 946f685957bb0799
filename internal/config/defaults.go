package config

import "time"

const (
	DefaultLogLevel = "info"

	DefaultDBPath             = "smartblinds.db"
	DefaultDBOperationTimeout = 15 * time.Second

	DefaultHTTPAddr            = ":8080"
	DefaultHTTPReadTimeout     = 10 * time.Second
	DefaultHTTPWriteTimeout    = 10 * time.Second
	DefaultHTTPShutdownTimeout = 5 * time.Second

	DefaultActuatorDriver    = "mock"
	DefaultActuatorMoveDelay = time.Duration(0)
	DefaultActuatorTimeout   = time.Minute

	// Seconds-first cron expressions, gocron's six-field form.
	DefaultSQLMaintenanceSchedule = "0 0 4 * * 0"
	DefaultScheduleAuditSchedule  = "0 */15 * * * *"
)

var defaults = map[string]any{
	"log.level": DefaultLogLevel,
	"log.json":  false,

	"database.path":              DefaultDBPath,
	"database.operation_timeout": DefaultDBOperationTimeout,

	"http.enabled":          true,
	"http.addr":             DefaultHTTPAddr,
	"http.read_timeout":     DefaultHTTPReadTimeout,
	"http.write_timeout":    DefaultHTTPWriteTimeout,
	"http.shutdown_timeout": DefaultHTTPShutdownTimeout,

	"telegram.enabled":       false,
	"telegram.token":         "",
	"telegram.admin_user_id": 0,

	"actuator.driver":       DefaultActuatorDriver,
	"actuator.initial_open": false,
	"actuator.move_delay":   DefaultActuatorMoveDelay,
	"actuator.timeout":      DefaultActuatorTimeout,

	"metrics.enabled": true,

	"maintenance.tasks.sql_maintenance.enabled":  true,
	"maintenance.tasks.sql_maintenance.schedule": DefaultSQLMaintenanceSchedule,
	"maintenance.tasks.schedule_audit.enabled":   true,
	"maintenance.tasks.schedule_audit.schedule":  DefaultScheduleAuditSchedule,

	"messages.welcome": "👋 Hi! I control the blinds. Send /help to see what I can do.",
	"messages.help": "/status - show whether the blinds are open\n" +
		"/open - open the blinds\n" +
		"/close - close the blinds\n" +
		"/toggle - toggle the blinds\n" +
		"/actions - list scheduled actions\n" +
		"/add_action <weekday> <HH:MM[:SS]> <open|close> - schedule a weekly action\n" +
		"/delete_action <id> - remove a scheduled action",
	"messages.error_unauthorized_msg":  "🚫 Access denied.",
	"messages.error_general_msg":       "❌ Something went wrong. Please try again later.",
	"messages.status_open_msg":         "🌤 The blinds are open.",
	"messages.status_closed_msg":       "🌙 The blinds are closed.",
	"messages.no_actions_msg":          "No actions scheduled.",
	"messages.actions_header_msg":      "Scheduled actions:",
	"messages.add_action_usage_msg":    "Usage: /add_action <weekday> <HH:MM[:SS]> <open|close>",
	"messages.action_created_msg":      "✅ Action %d scheduled, next run %s.",
	"messages.action_conflict_msg":     "⚠️ An action already exists at that weekday and time.",
	"messages.delete_action_usage_msg": "Usage: /delete_action <id>",
	"messages.action_deleted_msg":      "🗑 Action %d removed.",
	"messages.action_not_found_msg":    "Action %d does not exist.",
}
