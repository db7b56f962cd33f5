package config

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// SourceKind selects where sensor readings come from.
type SourceKind string

const (
	// SourceAuto uses the remote feed when one is configured, otherwise simulated data.
	SourceAuto      SourceKind = "auto"
	SourceSimulated SourceKind = "simulated"
	SourceRemote    SourceKind = "remote"
)

// IsValid returns whether the source kind is known
func (s SourceKind) IsValid() bool {
	switch s {
	case SourceAuto, SourceSimulated, SourceRemote:
		return true
	default:
		return false
	}
}

// Option defines a configuration option that can be passed to Load
type Option func(*options)

type options struct {
	configPath string
	envPrefix  string
	args       []string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "SMARTGRID"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithArgs replaces os.Args[1:] as the command line to parse
func WithArgs(args []string) Option {
	return func(o *options) {
		o.args = args
	}
}
