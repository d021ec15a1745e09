// Package config provides configuration management for the Clipper server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort              = 8790
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".clipper"
	DefaultWorkerURL         = "http://localhost:8000"
	DefaultAllowedOrigins    = "http://localhost:5173,http://localhost:3000"
	DefaultClerkAPIURL       = "https://api.clerk.com"
	DefaultOutboxMaxAttempts = 5

	// Environment variable names
	EnvPort     = "CLIPPER_PORT"
	EnvLogLevel = "CLIPPER_LOG_LEVEL"
	EnvDataDir  = "CLIPPER_DATA_DIR"

	EnvWorkerURL            = "CLIPPER_WORKER_URL"
	EnvWorkerTimeoutSeconds = "CLIPPER_WORKER_TIMEOUT_SECONDS"
	EnvAllowedOrigins       = "CLIPPER_ALLOWED_ORIGINS"

	EnvSessionSecret  = "CLIPPER_SESSION_SECRET"
	EnvSessionIssuer  = "CLIPPER_SESSION_ISSUER"
	EnvClerkAPIURL    = "CLIPPER_CLERK_API_URL"
	EnvClerkSecretKey = "CLIPPER_CLERK_SECRET_KEY"

	EnvMirror            = "CLIPPER_MIRROR"
	EnvSupabaseURL       = "CLIPPER_SUPABASE_URL"
	EnvSupabaseKey       = "CLIPPER_SUPABASE_KEY"
	EnvPostgresDSN       = "CLIPPER_POSTGRES_DSN"
	EnvOutboxEnabled     = "CLIPPER_OUTBOX_ENABLED"
	EnvOutboxMaxAttempts = "CLIPPER_OUTBOX_MAX_ATTEMPTS"

	// Database filename
	DBFilename = "clipper.db"
)

// Remote mirror backends.
const (
	MirrorNone     = "none"
	MirrorSupabase = "supabase"
	MirrorPostgres = "postgres"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	WorkerURL() string
	WorkerTimeout() time.Duration
	AllowedOrigins() []string
	SessionSecret() string
	SessionIssuer() string
	ClerkAPIURL() string
	ClerkSecretKey() string
	Mirror() string
	SupabaseURL() string
	SupabaseKey() string
	PostgresDSN() string
	OutboxEnabled() bool
	OutboxMaxAttempts() int
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	workerURL      string
	workerTimeout  time.Duration
	allowedOrigins []string

	sessionSecret  string
	sessionIssuer  string
	clerkAPIURL    string
	clerkSecretKey string

	mirror            string
	supabaseURL       string
	supabaseKey       string
	postgresDSN       string
	outboxEnabled     bool
	outboxMaxAttempts int
}

// LoadDotEnv reads a .env file into the environment when one exists.
// Variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		workerURL:         DefaultWorkerURL,
		allowedOrigins:    splitList(DefaultAllowedOrigins),
		clerkAPIURL:       DefaultClerkAPIURL,
		mirror:            MirrorNone,
		outboxEnabled:     true,
		outboxMaxAttempts: DefaultOutboxMaxAttempts,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if wu := os.Getenv(EnvWorkerURL); wu != "" {
		cfg.workerURL = strings.TrimRight(wu, "/")
	}

	if wt := os.Getenv(EnvWorkerTimeoutSeconds); wt != "" {
		secs, err := strconv.Atoi(wt)
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative number of seconds", EnvWorkerTimeoutSeconds)
		}
		cfg.workerTimeout = time.Duration(secs) * time.Second
	}

	if ao, ok := os.LookupEnv(EnvAllowedOrigins); ok {
		cfg.allowedOrigins = splitList(ao)
	}

	cfg.sessionSecret = os.Getenv(EnvSessionSecret)
	if si := os.Getenv(EnvSessionIssuer); si != "" {
		cfg.sessionIssuer = si
	}
	if cu := os.Getenv(EnvClerkAPIURL); cu != "" {
		cfg.clerkAPIURL = strings.TrimRight(cu, "/")
	}
	cfg.clerkSecretKey = os.Getenv(EnvClerkSecretKey)

	if m := os.Getenv(EnvMirror); m != "" {
		switch m = strings.ToLower(m); m {
		case MirrorNone, MirrorSupabase, MirrorPostgres:
			cfg.mirror = m
		default:
			return nil, fmt.Errorf("invalid %s: %q (want none, supabase or postgres)", EnvMirror, m)
		}
	}
	cfg.supabaseURL = os.Getenv(EnvSupabaseURL)
	cfg.supabaseKey = os.Getenv(EnvSupabaseKey)
	cfg.postgresDSN = os.Getenv(EnvPostgresDSN)

	switch {
	case cfg.mirror == MirrorSupabase && (cfg.supabaseURL == "" || cfg.supabaseKey == ""):
		return nil, fmt.Errorf("%s=supabase requires %s and %s", EnvMirror, EnvSupabaseURL, EnvSupabaseKey)
	case cfg.mirror == MirrorPostgres && cfg.postgresDSN == "":
		return nil, fmt.Errorf("%s=postgres requires %s", EnvMirror, EnvPostgresDSN)
	}

	if oe := os.Getenv(EnvOutboxEnabled); oe != "" {
		enabled, err := strconv.ParseBool(oe)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvOutboxEnabled, err)
		}
		cfg.outboxEnabled = enabled
	}

	if ma := os.Getenv(EnvOutboxMaxAttempts); ma != "" {
		n, err := strconv.Atoi(ma)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvOutboxMaxAttempts)
		}
		cfg.outboxMaxAttempts = n
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) WorkerURL() string {
	return c.workerURL
}

// WorkerTimeout bounds analyze and render calls. Zero means no limit.
func (c *EnvConfig) WorkerTimeout() time.Duration {
	return c.workerTimeout
}

// AllowedOrigins lists browser origins allowed by CORS.
func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *EnvConfig) SessionSecret() string {
	return c.sessionSecret
}

func (c *EnvConfig) SessionIssuer() string {
	return c.sessionIssuer
}

func (c *EnvConfig) ClerkAPIURL() string {
	return c.clerkAPIURL
}

func (c *EnvConfig) ClerkSecretKey() string {
	return c.clerkSecretKey
}

// Mirror returns the remote mirror backend: none, supabase or postgres.
func (c *EnvConfig) Mirror() string {
	return c.mirror
}

func (c *EnvConfig) SupabaseURL() string {
	return c.supabaseURL
}

func (c *EnvConfig) SupabaseKey() string {
	return c.supabaseKey
}

func (c *EnvConfig) PostgresDSN() string {
	return c.postgresDSN
}

// OutboxEnabled reports whether failed remote saves are queued for retry.
func (c *EnvConfig) OutboxEnabled() bool {
	return c.outboxEnabled
}

func (c *EnvConfig) OutboxMaxAttempts() int {
	return c.outboxMaxAttempts
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
