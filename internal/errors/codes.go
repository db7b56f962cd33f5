package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig     ErrorCode = "invalid_configuration"
	ErrBindFlags         ErrorCode = "bind_flags_failed"
	ErrReadConfig        ErrorCode = "read_config_failed"
	ErrInvalidInterval   ErrorCode = "invalid_interval"
	ErrInvalidCooldown   ErrorCode = "invalid_cooldown"
	ErrInvalidThresholds ErrorCode = "invalid_thresholds"
	ErrInvalidSource     ErrorCode = "invalid_source"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Process errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Reading source errors
	ErrInvalidReading     ErrorCode = "invalid_reading"
	ErrSourceUnavailable  ErrorCode = "source_unavailable"
	ErrSourceSubscription ErrorCode = "source_subscription_failed"

	// Alert errors
	ErrAlertNotFound ErrorCode = "alert_not_found"

	// Application errors
	ErrInitApp   ErrorCode = "init_app_failed"
	ErrMainLoop  ErrorCode = "main_loop_failed"
	ErrExport    ErrorCode = "export_failed"
	ErrMirror    ErrorCode = "mirror_failed"
	ErrHTTPServe ErrorCode = "http_serve_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"

	// Auth errors
	ErrUnauthorized       ErrorCode = "unauthorized"
	ErrInvalidCredentials ErrorCode = "invalid_credentials"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrUnavailable:        "Service unavailable",
	ErrInvalidConfig:      "Invalid configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrReadConfig:         "Failed to read config file",
	ErrInvalidInterval:    "Invalid interval value",
	ErrInvalidCooldown:    "Invalid alert cooldown",
	ErrInvalidThresholds:  "Invalid threshold range",
	ErrInvalidSource:      "Unknown reading source",
	ErrInvalidLogLevel:    "Invalid log level",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrAlreadyRunning:     "Another instance is already running",
	ErrInvalidReading:     "Invalid sensor reading",
	ErrSourceUnavailable:  "Reading source unavailable",
	ErrSourceSubscription: "Failed to subscribe to reading feed",
	ErrAlertNotFound:      "Alert not found",
	ErrInitApp:            "Failed to initialize application",
	ErrMainLoop:           "Error in main loop",
	ErrExport:             "Export failed",
	ErrMirror:             "Failed to mirror event",
	ErrHTTPServe:          "HTTP server failed",
	ErrOperationFailed:    "Operation failed",
	ErrTimeout:            "Operation timed out",
	ErrUnauthorized:       "Unauthorized",
	ErrInvalidCredentials: "Invalid username or password",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
