package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Forecast  ForecastConfig  `yaml:"forecast" envconfig:"FORECAST"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"45s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/salesdash.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	BoundaryFile string `yaml:"boundary_file" envconfig:"BOUNDARY_FILE" default:"br_states.json"`
	ExportDir    string `yaml:"export_dir" envconfig:"EXPORT_DIR" default:"exports"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// SourceConfig selects where the seven input tables are read from.
// Kind is one of csv, sqlite, postgres, mysql or mongo.
type SourceConfig struct {
	Kind     string            `yaml:"kind" envconfig:"KIND" default:"csv"`
	DSN      string            `yaml:"dsn" envconfig:"DSN"`
	Database string            `yaml:"database" envconfig:"DATABASE" default:"olist"`
	Tables   map[string]string `yaml:"tables" envconfig:"TABLES"`
	Timeout  time.Duration     `yaml:"timeout" envconfig:"TIMEOUT" default:"2m"`
}

// CacheConfig controls memoization of the joined table
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	VerifyInterval time.Duration `yaml:"verify_interval" envconfig:"VERIFY_INTERVAL" default:"0s"`
}

// AnalyticsConfig contains aggregation defaults
type AnalyticsConfig struct {
	RevenueMode      string   `yaml:"revenue_mode" envconfig:"REVENUE_MODE" default:"row"`
	CategoryLanguage string   `yaml:"category_language" envconfig:"CATEGORY_LANGUAGE" default:"pt"`
	DefaultStates    []string `yaml:"default_states" envconfig:"DEFAULT_STATES" default:"SP,RJ,MG"`
	DefaultMonths    int      `yaml:"default_months" envconfig:"DEFAULT_MONTHS" default:"12"`
	TopCategories    int      `yaml:"top_categories" envconfig:"TOP_CATEGORIES" default:"10"`
	TopStates        int      `yaml:"top_states" envconfig:"TOP_STATES" default:"5"`
}

// ForecastConfig contains forecaster settings
type ForecastConfig struct {
	Horizon       int     `yaml:"horizon" envconfig:"HORIZON" default:"365"`
	IntervalWidth float64 `yaml:"interval_width" envconfig:"INTERVAL_WIDTH" default:"0.8"`
	MinHistory    int     `yaml:"min_history" envconfig:"MIN_HISTORY" default:"14"`
}

// TelemetryConfig contains OpenTelemetry settings
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"salesdash"`
	TracingEnabled bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1.0"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration from the environment and the given YAML
// file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs overlays file values onto the env config wherever the
// environment did not set a variable explicitly.
func mergeConfigs(fileConfig, envConfig Config) Config {
	set := func(name string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + name)
		return ok
	}

	if !set("SERVER_PORT") && fileConfig.Server.Port != 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if !set("SERVER_READ_TIMEOUT") && fileConfig.Server.ReadTimeout != 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if !set("SERVER_WRITE_TIMEOUT") && fileConfig.Server.WriteTimeout != 0 {
		envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if !set("SECURITY_ALLOWED_ORIGINS") && len(fileConfig.Security.AllowedOrigins) > 0 {
		envConfig.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}

	if !set("LOGGING_LEVEL") && fileConfig.Logging.Level != "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if !set("LOGGING_OUTPUT") && fileConfig.Logging.Output != "" {
		envConfig.Logging.Output = fileConfig.Logging.Output
	}
	if !set("LOGGING_FILE_PATH") && fileConfig.Logging.FilePath != "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}

	if !set("PATHS_DATA_DIR") && fileConfig.Paths.DataDir != "" {
		envConfig.Paths.DataDir = fileConfig.Paths.DataDir
	}
	if !set("PATHS_BOUNDARY_FILE") && fileConfig.Paths.BoundaryFile != "" {
		envConfig.Paths.BoundaryFile = fileConfig.Paths.BoundaryFile
	}
	if !set("PATHS_EXPORT_DIR") && fileConfig.Paths.ExportDir != "" {
		envConfig.Paths.ExportDir = fileConfig.Paths.ExportDir
	}

	if !set("SOURCE_KIND") && fileConfig.Source.Kind != "" {
		envConfig.Source.Kind = fileConfig.Source.Kind
	}
	if !set("SOURCE_DSN") && fileConfig.Source.DSN != "" {
		envConfig.Source.DSN = fileConfig.Source.DSN
	}
	if !set("SOURCE_DATABASE") && fileConfig.Source.Database != "" {
		envConfig.Source.Database = fileConfig.Source.Database
	}
	if !set("SOURCE_TABLES") && len(fileConfig.Source.Tables) > 0 {
		envConfig.Source.Tables = fileConfig.Source.Tables
	}

	if !set("ANALYTICS_REVENUE_MODE") && fileConfig.Analytics.RevenueMode != "" {
		envConfig.Analytics.RevenueMode = fileConfig.Analytics.RevenueMode
	}
	if !set("ANALYTICS_CATEGORY_LANGUAGE") && fileConfig.Analytics.CategoryLanguage != "" {
		envConfig.Analytics.CategoryLanguage = fileConfig.Analytics.CategoryLanguage
	}
	if !set("ANALYTICS_DEFAULT_STATES") && len(fileConfig.Analytics.DefaultStates) > 0 {
		envConfig.Analytics.DefaultStates = fileConfig.Analytics.DefaultStates
	}

	if !set("FORECAST_HORIZON") && fileConfig.Forecast.Horizon != 0 {
		envConfig.Forecast.Horizon = fileConfig.Forecast.Horizon
	}
	if !set("FORECAST_INTERVAL_WIDTH") && fileConfig.Forecast.IntervalWidth != 0 {
		envConfig.Forecast.IntervalWidth = fileConfig.Forecast.IntervalWidth
	}

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	c.Source.Kind = strings.ToLower(c.Source.Kind)
	switch c.Source.Kind {
	case SourceCSV:
		if c.Paths.DataDir == "" {
			return fmt.Errorf("paths.data_dir is required for csv source")
		}
	case SourceSQLite, SourcePostgres, SourceMySQL, SourceMongo:
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for %s source", c.Source.Kind)
		}
	default:
		return fmt.Errorf("unknown source kind: %q", c.Source.Kind)
	}

	switch c.Analytics.RevenueMode {
	case "row", "payment":
	default:
		return fmt.Errorf("invalid revenue mode: %q", c.Analytics.RevenueMode)
	}

	switch c.Analytics.CategoryLanguage {
	case "pt", "en":
	default:
		return fmt.Errorf("invalid category language: %q", c.Analytics.CategoryLanguage)
	}

	if c.Analytics.DefaultMonths <= 0 {
		c.Analytics.DefaultMonths = 12
	}

	if c.Forecast.Horizon <= 0 {
		return fmt.Errorf("forecast horizon must be positive")
	}

	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast interval width must be in (0, 1): %v", c.Forecast.IntervalWidth)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// TableFile returns the configured name of an input table, falling back to
// the stock dataset file name.
func (c *Config) TableFile(table string) string {
	if name, ok := c.Source.Tables[table]; ok && name != "" {
		return name
	}
	return DefaultTableFiles[table]
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  45 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/salesdash.log",
		},
		Paths: PathsConfig{
			DataDir:      "data",
			BoundaryFile: "br_states.json",
			ExportDir:    "exports",
			LogsDir:      "logs",
		},
		Source: SourceConfig{
			Kind:     SourceCSV,
			Database: "olist",
			Timeout:  2 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Analytics: AnalyticsConfig{
			RevenueMode:      "row",
			CategoryLanguage: "pt",
			DefaultStates:    []string{"SP", "RJ", "MG"},
			DefaultMonths:    12,
			TopCategories:    10,
			TopStates:        5,
		},
		Forecast: ForecastConfig{
			Horizon:       365,
			IntervalWidth: 0.8,
			MinHistory:    14,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			MetricsEnabled: true,
			SampleRatio:    1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
