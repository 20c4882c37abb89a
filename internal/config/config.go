package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "sroanalysis/internal/errors"
	"sroanalysis/internal/measures"
)

// EnvPrefix namespaces every environment variable, e.g. SRO_ANALYSIS_TOP_N
const EnvPrefix = "SRO"

// Config represents the complete application configuration
type Config struct {
	Study     StudyConfig     `yaml:"study" envconfig:"STUDY"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// StudyConfig describes the study the measures were extracted for
type StudyConfig struct {
	StartDate          string   `yaml:"start_date" envconfig:"START_DATE"`
	EndDate            string   `yaml:"end_date" envconfig:"END_DATE"`
	Marker             string   `yaml:"marker" envconfig:"MARKER"`
	Demographics       []string `yaml:"demographics" envconfig:"DEMOGRAPHICS"`
	CodelistPath       string   `yaml:"codelist_path" envconfig:"CODELIST_PATH"`
	CodelistCodeColumn string   `yaml:"codelist_code_column" envconfig:"CODELIST_CODE_COLUMN"`
	CodelistTermColumn string   `yaml:"codelist_term_column" envconfig:"CODELIST_TERM_COLUMN"`

	// Measures overrides the measures derived from Demographics
	Measures []measures.Measure `yaml:"measures" ignored:"true"`
}

// AnalysisConfig tunes the transforms
type AnalysisConfig struct {
	RatePer            float64 `yaml:"rate_per" envconfig:"RATE_PER"`
	RedactionThreshold int     `yaml:"redaction_threshold" envconfig:"REDACTION_THRESHOLD"`
	RedactionScope     string  `yaml:"redaction_scope" envconfig:"REDACTION_SCOPE"`
	TopN               int     `yaml:"top_n" envconfig:"TOP_N"`
	MaxConcurrency     int     `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	InputDir  string `yaml:"input_dir" envconfig:"INPUT_DIR"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// StorageConfig selects where result tables are written
type StorageConfig struct {
	Sinks      []string `yaml:"sinks" envconfig:"SINKS"`
	Workbook   string   `yaml:"workbook" envconfig:"WORKBOOK"`
	SQLitePath string   `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	S3         S3Config `yaml:"s3" envconfig:"S3"`
}

// S3Config configures the object storage sink
type S3Config struct {
	Bucket          string `yaml:"bucket" envconfig:"BUCKET"`
	Region          string `yaml:"region" envconfig:"REGION"`
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT"`
	Prefix          string `yaml:"prefix" envconfig:"PREFIX"`
	UsePathStyle    bool   `yaml:"use_path_style" envconfig:"USE_PATH_STYLE"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration from defaults, the first config file found
// and environment variables, in increasing order of precedence
func Load() (*Config, error) {
	path := os.Getenv(EnvPrefix + "_CONFIG_FILE")
	if path == "" {
		path = getConfigFilePath()
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit config file; an empty path skips the file
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current values
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration and normalises a few values
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...interface{}) error {
		return apperrors.NewConfigError(fmt.Sprintf(format, args...), nil).WithContext("field", field)
	}

	start, end, err := c.Study.Period()
	if err != nil {
		return invalid("study.start_date", "invalid study period: %v", err)
	}
	if !end.After(start) {
		return invalid("study.end_date", "study end date %s must be after start date %s", c.Study.EndDate, c.Study.StartDate)
	}
	if c.Study.CodelistCodeColumn == "" || c.Study.CodelistTermColumn == "" {
		return invalid("study.codelist_code_column", "codelist code and term columns are required")
	}
	for _, m := range c.Study.Measures {
		if err := m.Validate(); err != nil {
			return invalid("study.measures", "%v", err)
		}
	}

	if c.Analysis.RatePer <= 0 {
		return invalid("analysis.rate_per", "rate_per must be positive, got %v", c.Analysis.RatePer)
	}
	if c.Analysis.RedactionThreshold < 0 {
		return invalid("analysis.redaction_threshold", "redaction threshold must not be negative")
	}
	c.Analysis.RedactionScope = strings.ToLower(strings.TrimSpace(c.Analysis.RedactionScope))
	if !measures.RedactionScope(c.Analysis.RedactionScope).Valid() {
		return invalid("analysis.redaction_scope", "unknown redaction scope %q", c.Analysis.RedactionScope)
	}
	if c.Analysis.TopN <= 0 {
		return invalid("analysis.top_n", "top_n must be positive")
	}
	if c.Analysis.MaxConcurrency <= 0 {
		c.Analysis.MaxConcurrency = 1
	}

	for i, s := range c.Storage.Sinks {
		s = strings.ToLower(strings.TrimSpace(s))
		c.Storage.Sinks[i] = s
		switch s {
		case SinkCSV, SinkExcel, SinkSQLite:
		case SinkS3:
			if c.Storage.S3.Bucket == "" {
				return invalid("storage.s3.bucket", "s3 sink requires a bucket")
			}
		default:
			return invalid("storage.sinks", "unknown sink %q", s)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port", "invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return invalid("server.read_timeout", "server timeouts must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	return nil
}

// Period parses the study start and end dates
func (s StudyConfig) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(measures.DateLayout, s.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
	}
	end, err := time.Parse(measures.DateLayout, s.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
	}
	return start, end, nil
}

// MeasureDefinitions returns the configured measures, or the defaults for
// the configured demographics
func (s StudyConfig) MeasureDefinitions() []measures.Measure {
	if len(s.Measures) > 0 {
		out := make([]measures.Measure, len(s.Measures))
		copy(out, s.Measures)
		return out
	}
	return measures.DefaultMeasures(s.Demographics)
}

// Scope returns the redaction scope as the measures type
func (a AnalysisConfig) Scope() measures.RedactionScope {
	return measures.RedactionScope(a.RedactionScope)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
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

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Study: StudyConfig{
			StartDate:          "2020-12-01",
			EndDate:            "2021-12-01",
			Marker:             "SMR",
			Demographics:       []string{"sex", "age_band", "region", "imd", "ethnicity", "learning_disability"},
			CodelistPath:       "codelists/codelist.csv",
			CodelistCodeColumn: "code",
			CodelistTermColumn: "term",
		},
		Analysis: AnalysisConfig{
			RatePer:            measures.DefaultRatePer,
			RedactionThreshold: measures.DefaultRedactionThreshold,
			RedactionScope:     string(measures.ScopePeriod),
			TopN:               measures.DefaultTopN,
			MaxConcurrency:     4,
		},
		Paths: PathsConfig{
			InputDir:  "output",
			OutputDir: "output/report",
			LogsDir:   "logs",
		},
		Storage: StorageConfig{
			Sinks:      []string{SinkCSV},
			Workbook:   "measures.xlsx",
			SQLitePath: "measures.db",
			S3: S3Config{
				Region: "eu-west-2",
				Prefix: "measures",
			},
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Telemetry: TelemetryConfig{
			Enabled:        true,
			ServiceName:    ServiceName,
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
	}
}
