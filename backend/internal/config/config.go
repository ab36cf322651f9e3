package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"greenhouse-monitor/backend/internal/controller"
	"greenhouse-monitor/backend/internal/poller"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/dialect"
)

type EnvKey string

const (
	EnvPort      EnvKey = "PORT"
	EnvDataDir   EnvKey = "DATA_DIR"
	EnvLogLevel  EnvKey = "LOG_LEVEL"
	EnvLogFormat EnvKey = "LOG_FORMAT"
	EnvLogToFile EnvKey = "LOG_TO_FILE"

	EnvDBDialect EnvKey = "DATABASE_DIALECT"
	EnvDBHost    EnvKey = "DB_HOST"
	EnvDBPort    EnvKey = "DB_PORT"
	EnvDBName    EnvKey = "DB_NAME"
	EnvDBUser    EnvKey = "DB_USER"
	EnvDBPass    EnvKey = "DB_PASSWORD"
	EnvDBSSLMode EnvKey = "DB_SSLMODE"

	EnvThingSpeakURL EnvKey = "THINGSPEAK_URL"
	EnvChannelID     EnvKey = "CHANNEL_ID"
	EnvReadAPIKey    EnvKey = "READ_API_KEY"
	EnvWriteAPIKey   EnvKey = "WRITE_API_KEY"

	EnvPollInterval     EnvKey = "POLL_INTERVAL"
	EnvCacheRetention   EnvKey = "CACHE_RETENTION"
	EnvWateringDuration EnvKey = "WATERING_DURATION"
	EnvReconcileGrace   EnvKey = "RECONCILE_GRACE"

	EnvMQTTEnabled    EnvKey = "MQTT_ENABLED"
	EnvMQTTBrokerPort EnvKey = "MQTT_SERVER_PORT"
	EnvMQTTBroker     EnvKey = "MQTT_BROKER"
	EnvMQTTClientID   EnvKey = "MQTT_CLIENT_ID"
	EnvMQTTUsername   EnvKey = "MQTT_USERNAME"
	EnvMQTTPassword   EnvKey = "MQTT_PASSWORD"
)

// DatabaseFile is the SQLite database created inside the data directory.
const DatabaseFile = "greenhouse.db"

// DotEnvFile is loaded from the working directory when present. Real environment variables
// take precedence over it.
const DotEnvFile = ".env"

type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

type Config struct {
	Port      int
	DataDir   string
	LogLevel  slog.Leveler
	LogFormat LogFormat
	LogOutput io.Writer

	// Dialect selects the database backend. Database is the SQLite file path or the
	// PostgreSQL connection URL.
	Dialect  dialect.Dialect
	Database string

	// Remote channel
	ThingSpeakURL string
	// Credentials seed the credential store at startup; empty fields keep stored values
	Credentials telemetry.Credentials

	PollInterval     time.Duration
	CacheRetention   time.Duration
	WateringDuration time.Duration
	ReconcileGrace   time.Duration

	// MQTT client configuration
	MQTTEnabled  bool
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Embedded MQTT broker port, 0 disables the broker
	MQTTBrokerPort int
}

func New() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	// Get data directory
	dataDir := getStringEnv(EnvDataDir, "data")

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var logOutput io.Writer = os.Stdout

	if getBoolEnv(EnvLogToFile, false) {
		f, err := os.OpenFile(filepath.Join(dataDir, "app.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logOutput = f
	}

	dbDialect := dialect.Dialect(strings.ToLower(getStringEnv(EnvDBDialect, string(dialect.SQLite))))

	var database string

	switch dbDialect {
	case dialect.SQLite:
		database = filepath.Join(dataDir, DatabaseFile)
	case dialect.PostgreSQL:
		database = postgresURL(
			getStringEnv(EnvDBHost, "localhost"),
			getIntEnv(EnvDBPort, 5432),
			getStringEnv(EnvDBName, "greenhouse"),
			getStringEnv(EnvDBUser, "greenhouse"),
			getStringEnv(EnvDBPass, ""),
			getStringEnv(EnvDBSSLMode, "disable"),
		)
	}

	c := &Config{
		Port:      getIntEnv(EnvPort, 8080),
		DataDir:   dataDir,
		LogLevel:  getLogLevelEnv(EnvLogLevel, slog.LevelInfo),
		LogFormat: getLogFormatEnv(EnvLogFormat, LogFormatJSON),
		LogOutput: logOutput,

		Dialect:  dbDialect,
		Database: database,

		ThingSpeakURL: strings.TrimRight(getStringEnv(EnvThingSpeakURL, telemetry.DefaultBaseURL), "/"),
		Credentials: telemetry.Credentials{
			ChannelID: getStringEnv(EnvChannelID, ""),
			ReadKey:   getStringEnv(EnvReadAPIKey, ""),
			WriteKey:  getStringEnv(EnvWriteAPIKey, ""),
		},

		PollInterval:     getDurationEnv(EnvPollInterval, poller.DefaultInterval),
		CacheRetention:   getDurationEnv(EnvCacheRetention, telemetry.DefaultCacheRetention),
		WateringDuration: getDurationEnv(EnvWateringDuration, controller.DefaultWateringDuration),
		ReconcileGrace:   getDurationEnv(EnvReconcileGrace, controller.DefaultReconcileGrace),

		MQTTEnabled:    getBoolEnv(EnvMQTTEnabled, true),
		MQTTBrokerPort: getIntEnv(EnvMQTTBrokerPort, 1883),
		MQTTBroker:     getStringEnv(EnvMQTTBroker, "tcp://127.0.0.1:1883"),
		MQTTClientID:   getStringEnv(EnvMQTTClientID, "greenhouse-monitor"),
		MQTTUsername:   getStringEnv(EnvMQTTUsername, ""),
		MQTTPassword:   getStringEnv(EnvMQTTPassword, ""),
	}

	if err := c.validate(); err != nil {
		return nil, errors.Join(err, c.Close())
	}

	return c, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 65535, got %d", EnvPort, c.Port))
	}

	if err := c.Dialect.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvDBDialect, err))
	}

	if c.MQTTBrokerPort < 0 || c.MQTTBrokerPort > 65535 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 65535, got %d", EnvMQTTBrokerPort, c.MQTTBrokerPort))
	}

	if u, err := url.Parse(c.ThingSpeakURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an http(s) URL, got %q", EnvThingSpeakURL, c.ThingSpeakURL))
	}

	for key, d := range map[EnvKey]time.Duration{
		EnvPollInterval:     c.PollInterval,
		EnvCacheRetention:   c.CacheRetention,
		EnvWateringDuration: c.WateringDuration,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}

	if c.ReconcileGrace < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %s", EnvReconcileGrace, c.ReconcileGrace))
	}

	return errors.Join(errs...)
}

func (c *Config) Close() error {
	if f, ok := c.LogOutput.(*os.File); ok {
		if f != os.Stdout && f != os.Stderr {
			return f.Close()
		}
	}

	return nil
}

func postgresURL(host string, port int, name, user, password, sslMode string) string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(user), url.QueryEscape(password),
		net.JoinHostPort(host, strconv.Itoa(port)),
		url.PathEscape(name), url.QueryEscape(sslMode),
	)
}

func getStringEnv(key EnvKey, defaultVal string) string {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	return val
}

func getBoolEnv(key EnvKey, defaultVal bool) bool {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	val = strings.ToLower(val)
	switch val {
	case "true", "1":
		return true
	default:
		return false
	}
}

func getIntEnv(key EnvKey, defaultVal int) int {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if intVal, err := strconv.Atoi(val); err == nil {
		return intVal
	}

	return defaultVal
}

// getDurationEnv accepts Go duration strings ("90s", "5m") or a plain number of seconds.
func getDurationEnv(key EnvKey, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	if d, err := time.ParseDuration(val); err == nil {
		return d
	}

	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultVal
}

func getLogLevelEnv(key EnvKey, defaultVal slog.Leveler) slog.Leveler {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch strings.ToUpper(val) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}

	return defaultVal
}

func getLogFormatEnv(key EnvKey, defaultVal LogFormat) LogFormat {
	val, exists := os.LookupEnv(string(key))
	if !exists {
		return defaultVal
	}

	switch LogFormat(strings.ToLower(val)) {
	case LogFormatText:
		return LogFormatText
	case LogFormatJSON:
		return LogFormatJSON
	}

	return defaultVal
}
