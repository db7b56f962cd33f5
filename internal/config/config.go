package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval    = 3
	DefaultLogLevel    = "info"
	DefaultCooldown    = 30 * time.Second
	DefaultAlertLimit  = 10
	DefaultHistorySize = 50
	DefaultListenAddr  = ":8080"
	DefaultTelemetryDB = "/var/lib/smartgrid/telemetry.db"
	DefaultTokenTTL    = 12 * time.Hour

	defaultEnvPrefix  = "SMARTGRID"
	defaultConfigName = "smartgrid"
	configEnvVar      = "SMARTGRID_CONFIG"
)

type Config struct {
	Interval    int           `mapstructure:"interval"`
	LogLevel    string        `mapstructure:"log_level"`
	Source      string        `mapstructure:"source"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	AlertLimit  int           `mapstructure:"alert_limit"`
	HistorySize int           `mapstructure:"history_size"`
	Telemetry   bool          `mapstructure:"telemetry"`
	TelemetryDB string        `mapstructure:"database"`
	Thresholds  Thresholds    `mapstructure:"thresholds"`
	Remote      Remote        `mapstructure:"remote"`
	Mirror      Mirror        `mapstructure:"mirror"`
	HTTP        HTTP          `mapstructure:"http"`
	Auth        Auth          `mapstructure:"auth"`
}

type Thresholds struct {
	VoltageMin float64 `mapstructure:"voltage_min"`
	VoltageMax float64 `mapstructure:"voltage_max"`
	CurrentMin float64 `mapstructure:"current_min"`
	CurrentMax float64 `mapstructure:"current_max"`
	PowerMin   float64 `mapstructure:"power_min"`
	PowerMax   float64 `mapstructure:"power_max"`
}

// Remote describes the redis store that carries the live feed and
// receives mirrored alerts and load controls.
type Remote struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	ReadingKey     string `mapstructure:"reading_key"`
	ReadingChannel string `mapstructure:"reading_channel"`
	HistoryKey     string `mapstructure:"history_key"`
}

// Mirror points alert and load replication at its own redis store. An
// empty Addr reuses the remote feed connection.
type Mirror struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HTTP struct {
	Listen string `mapstructure:"listen"`
}

type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Users     []User        `mapstructure:"users"`
}

type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// Load reads .env, the config file, SMARTGRID_* environment variables and
// command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix:  defaultEnvPrefix,
		configPath: os.Getenv(configEnvVar),
		args:       os.Args[1:],
	}
	for _, opt := range opts {
		opt(o)
	}

	// A missing .env is the normal case outside development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("smartgrid", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configFlag := fs.String("config", o.configPath, "Path to the configuration file")
	fs.Int("interval", DefaultInterval, "Seconds between simulated readings")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("source", string(SourceAuto), "Reading source (auto, simulated, remote)")
	fs.Duration("cooldown", DefaultCooldown, "Minimum time between alerts of the same kind")
	fs.String("listen", DefaultListenAddr, "Dashboard listen address")
	fs.Bool("telemetry", false, "Persist readings and alerts to sqlite")
	fs.String("database", DefaultTelemetryDB, "Path to the telemetry database")

	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for key, name := range map[string]string{
		"interval":    "interval",
		"log_level":   "log-level",
		"source":      "source",
		"cooldown":    "cooldown",
		"http.listen": "listen",
		"telemetry":   "telemetry",
		"database":    "database",
	} {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFlag != "" {
		v.SetConfigFile(*configFlag)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/smartgrid")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := monitor.DefaultThresholds()

	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("source", string(SourceAuto))
	v.SetDefault("cooldown", DefaultCooldown)
	v.SetDefault("alert_limit", DefaultAlertLimit)
	v.SetDefault("history_size", DefaultHistorySize)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", DefaultTelemetryDB)
	v.SetDefault("thresholds.voltage_min", defaults.Voltage.Min)
	v.SetDefault("thresholds.voltage_max", defaults.Voltage.Max)
	v.SetDefault("thresholds.current_min", defaults.Current.Min)
	v.SetDefault("thresholds.current_max", defaults.Current.Max)
	v.SetDefault("thresholds.power_min", defaults.Power.Min)
	v.SetDefault("thresholds.power_max", defaults.Power.Max)
	v.SetDefault("remote.addr", "")
	v.SetDefault("remote.password", "")
	v.SetDefault("remote.db", 0)
	v.SetDefault("remote.reading_key", "sensors:current")
	v.SetDefault("remote.reading_channel", "sensors:current")
	v.SetDefault("remote.history_key", "sensors:historical")
	v.SetDefault("mirror.addr", "")
	v.SetDefault("mirror.password", "")
	v.SetDefault("mirror.db", 0)
	v.SetDefault("http.listen", DefaultListenAddr)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", DefaultTokenTTL)
}

// Validate checks ranges and enumerations that viper cannot enforce
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.Cooldown < 0 {
		return errFactory.WithData(errors.ErrInvalidCooldown, c.Cooldown.String())
	}
	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if !SourceKind(c.Source).IsValid() {
		return errFactory.WithData(errors.ErrInvalidSource, c.Source)
	}
	if SourceKind(c.Source) == SourceRemote && c.Remote.Addr == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "remote source requires remote.addr")
	}
	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "telemetry requires a database path")
	}
	if c.AlertLimit <= 0 {
		c.AlertLimit = DefaultAlertLimit
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}

	if err := c.ThresholdConfig().Validate(); err != nil {
		return err
	}

	return nil
}

// ThresholdConfig converts the flat file layout into the monitor's ranges
func (c *Config) ThresholdConfig() monitor.ThresholdConfig {
	return monitor.ThresholdConfig{
		Voltage: monitor.Range{Min: c.Thresholds.VoltageMin, Max: c.Thresholds.VoltageMax},
		Current: monitor.Range{Min: c.Thresholds.CurrentMin, Max: c.Thresholds.CurrentMax},
		Power:   monitor.Range{Min: c.Thresholds.PowerMin, Max: c.Thresholds.PowerMax},
	}
}

// UseRemote reports whether the remote feed should be used
func (c *Config) UseRemote() bool {
	switch SourceKind(c.Source) {
	case SourceRemote:
		return true
	case SourceAuto:
		return c.Remote.Addr != ""
	default:
		return false
	}
}

// MirrorEnabled reports whether alerts and load changes are replicated
func (c *Config) MirrorEnabled() bool {
	return c.Mirror.Addr != "" || c.UseRemote()
}

// AuthEnabled reports whether mutating routes require a bearer token
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

func (c *Config) String() string {
	return fmt.Sprintf("source=%s interval=%ds cooldown=%s listen=%s telemetry=%t",
		c.Source, c.Interval, c.Cooldown, c.HTTP.Listen, c.Telemetry)
}
