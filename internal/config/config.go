package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Attendance AttendanceConfig
	Camera     CameraConfig
	CheckIn    CheckInConfig
	Database   DatabaseConfig
	Web        WebConfig
	LogLevel   string
}

type AttendanceConfig struct {
	URL        string // API root, e.g. http://localhost:8000/api
	Token      string // bearer token of the signed-in attendee or host
	CaptureDir string // directory to save raw API responses (optional)
	Timezone   string // IANA zone event times are interpreted in (default local)
}

// Location returns the configured zone, or time.Local when unset or invalid.
func (c *AttendanceConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type CameraConfig struct {
	SnapshotURL string // HTTP still-image endpoint of an IP camera
	FramesDir   string // directory of images replayed as frames
	MaxSize     int    // longest side after normalisation (default 1024)
}

type CheckInConfig struct {
	Interval    time.Duration // capture cadence (default 3s)
	CallTimeout time.Duration // per verification call, 0 = transport default
	RulesFile   string        // classification table overriding the embedded one (optional)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty keeps the journal in memory
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host           string
	Port           string
	APIToken       string   // bearer token required by the kiosk API (optional)
	AllowedOrigins []string // CORS origins (default *)
	FrameRateLimit int      // frame uploads per second per session (default 5)
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

// envDuration reads a Go duration ("3s", "500ms"). Returns the default value
// if the env var is unset, empty, negative, or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

// envString returns the env var or the default when it is empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated env var, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func Load() *Config {
	return &Config{
		Attendance: AttendanceConfig{
			URL:        os.Getenv("ATTENDANCE_API_URL"),
			Token:      os.Getenv("ATTENDANCE_API_TOKEN"),
			CaptureDir: os.Getenv("ATTENDANCE_CAPTURE_DIR"),
			Timezone:   os.Getenv("ATTENDANCE_TIMEZONE"),
		},
		Camera: CameraConfig{
			SnapshotURL: os.Getenv("CAMERA_SNAPSHOT_URL"),
			FramesDir:   os.Getenv("CAMERA_FRAMES_DIR"),
			MaxSize:     envInt("CAMERA_MAX_SIZE", 1024),
		},
		CheckIn: CheckInConfig{
			Interval:    envDuration("CHECKIN_INTERVAL", 3*time.Second),
			CallTimeout: envDuration("CHECKIN_CALL_TIMEOUT", 0),
			RulesFile:   os.Getenv("CHECKIN_RULES_FILE"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envString("WEB_PORT", "8080"),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", []string{"*"}),
			FrameRateLimit: envInt("WEB_FRAME_RATE_LIMIT", 5),
		},
		LogLevel: os.Getenv("LOG_LEVEL"),
	}
}
