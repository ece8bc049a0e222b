package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Camera   CameraConfig   `yaml:"camera"`
	Capture  CaptureConfig  `yaml:"capture"`
	Stats    StatsConfig    `yaml:"stats"`
	Database DatabaseConfig `yaml:"-"`
	Log      LogConfig      `yaml:"-"`
	Web      WebConfig      `yaml:"-"`
}

type BackendConfig struct {
	URL     string        `yaml:"-"`
	Branch  string        `yaml:"-"` // default branch context for marking (e.g. CSE)
	Timeout time.Duration `yaml:"timeout"`
	token   string
}

// GetToken returns the bearer token used for authenticated backend calls.
// An empty token is valid: requests then carry "Bearer " and the backend treats them as anonymous.
func (c *BackendConfig) GetToken() string {
	return c.token
}

// SetToken overrides the bearer token (used by the --token flag).
func (c *BackendConfig) SetToken(token string) {
	c.token = token
}

type CameraConfig struct {
	Source string `yaml:"-"` // "image" or "gocv"
	Device string `yaml:"-"` // image file/directory, or webcam index for gocv
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Facing string `yaml:"facing"`
}

type CaptureConfig struct {
	FrameWidth       int           `yaml:"frame_width"`
	FrameHeight      int           `yaml:"frame_height"`
	JPEGQuality      int           `yaml:"jpeg_quality"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	NoMatchReset     time.Duration `yaml:"no_match_reset"`
	DuplicateMarkers []string      `yaml:"duplicate_markers"`
}

type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type DatabaseConfig struct {
	URL          string // postgres:// or mysql:// URL for the outcome journal (optional)
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

// Driver picks the journal backend from the URL scheme: "postgres" for
// postgres:// and postgresql://, "mariadb" for mysql:// and mariadb://.
// An empty URL means no SQL journal.
func (c *DatabaseConfig) Driver() string {
	scheme, _, ok := strings.Cut(c.URL, "://")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "postgres"
	case "mysql", "mariadb":
		return "mariadb"
	}
	return ""
}

type LogConfig struct {
	Level  string
	Format string // console or json
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	OperatorToken  string // when set, the capture panel API requires this bearer token
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration (e.g. 1500ms, 3s).
// Returns the default value if the env var is unset, invalid, or not positive.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envString reads an environment variable, falling back to defaultVal when unset or blank.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg.Backend.URL = strings.TrimRight(os.Getenv("BACKEND_URL"), "/")
	cfg.Backend.Branch = envString("KIOSK_BRANCH", "CSE")
	cfg.Backend.Timeout = envDuration("BACKEND_TIMEOUT", cfg.Backend.Timeout)
	cfg.Backend.token = os.Getenv("BACKEND_TOKEN")

	cfg.Camera.Source = envString("CAMERA_SOURCE", "image")
	cfg.Camera.Device = os.Getenv("CAMERA_DEVICE")

	cfg.Capture.SettleDelay = envDuration("CAPTURE_SETTLE", cfg.Capture.SettleDelay)
	cfg.Capture.NoMatchReset = envDuration("CAPTURE_NOMATCH_RESET", cfg.Capture.NoMatchReset)
	cfg.Capture.JPEGQuality = envInt("CAPTURE_JPEG_QUALITY", cfg.Capture.JPEGQuality)

	cfg.Stats.Interval = envDuration("STATS_INTERVAL", cfg.Stats.Interval)

	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
	}

	cfg.Log = LogConfig{
		Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
		Format: strings.ToLower(envString("LOG_FORMAT", "console")),
	}

	cfg.Web = WebConfig{
		Host:           envString("WEB_HOST", "0.0.0.0"),
		Port:           envInt("WEB_PORT", 8080),
		AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		OperatorToken:  os.Getenv("WEB_OPERATOR_TOKEN"),
	}

	return &cfg
}

// Validate reports configuration problems that make capture impossible.
func (c *Config) Validate() []string {
	var problems []string
	if c.Backend.URL == "" {
		problems = append(problems, "BACKEND_URL environment variable is required")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		problems = append(problems, "CAPTURE_JPEG_QUALITY must be between 1 and 100")
	}
	if c.Capture.FrameWidth <= 0 || c.Capture.FrameHeight <= 0 {
		problems = append(problems, "capture frame dimensions must be positive")
	}
	if c.Database.URL != "" && c.Database.Driver() == "" {
		problems = append(problems, "DATABASE_URL must be a postgres:// or mysql:// URL")
	}
	return problems
}
