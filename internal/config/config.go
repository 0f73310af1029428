// Package config loads audiody configuration from flags, environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppDirName is the directory created under the platform audio directory.
const AppDirName = "Audiody"

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Library  LibraryConfig
	Download DownloadConfig
	Player   PlayerConfig
	Server   ServerConfig
	Store    StoreConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or pretty, empty picks by environment
	File   string // optional log file
}

// LibraryConfig describes the local cache root.
type LibraryConfig struct {
	// Root is <audio dir>/Audiody. Book directories live under Root/books.
	Root  string
	Watch bool
}

// BooksDir returns the directory holding one subdirectory per cached book.
func (l LibraryConfig) BooksDir() string {
	return filepath.Join(l.Root, "books")
}

// DownloadConfig holds chapter acquisition settings.
type DownloadConfig struct {
	Workers      int
	FetchTimeout time.Duration // per HTTP fetch
	ToolTimeout  time.Duration // per extraction tool run
	YtDlpPath    string
	FFmpegPath   string        // passed to yt-dlp when set
	HostRate     float64       // requests per second per remote host
	HostBurst    int
	MaxCoverSize int64
}

// PlayerConfig holds audio output settings.
type PlayerConfig struct {
	Enabled      bool
	SampleRate   int
	Volume       float64
	PollInterval time.Duration
}

// ServerConfig holds the local control API settings.
type ServerConfig struct {
	Enabled      bool
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// StoreConfig holds the download task journal location.
type StoreConfig struct {
	Path string // defaults to {root}/state/tasks
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("audiody", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	logFile := fs.String("log-file", "", "Write logs to this file")
	root := fs.String("root", "", "Cache root (default: <audio dir>/Audiody)")
	watch := fs.String("watch", "", "Watch the library for changes (default: true)")

	workers := fs.String("download-workers", "", "Concurrent download tasks (default: 2)")
	fetchTimeout := fs.String("fetch-timeout", "", "Timeout for a single HTTP fetch (default: 30m)")
	toolTimeout := fs.String("tool-timeout", "", "Timeout for one yt-dlp run (default: 2h)")
	ytdlp := fs.String("ytdlp-path", "", "Path to yt-dlp (default: yt-dlp on PATH)")
	ffmpeg := fs.String("ffmpeg-path", "", "Path to ffmpeg, passed to yt-dlp")
	hostRate := fs.String("host-rate", "", "Requests per second per remote host (default: 2)")
	hostBurst := fs.String("host-burst", "", "Request burst per remote host (default: 4)")

	playerEnabled := fs.String("player", "", "Open the audio device (default: true)")
	sampleRate := fs.String("sample-rate", "", "Output sample rate (default: 44100)")
	volume := fs.String("volume", "", "Initial volume 0-100 (default: 100)")
	pollInterval := fs.String("poll-interval", "", "Position refresh while playing (default: 500ms)")

	serverEnabled := fs.String("api", "", "Serve the local control API (default: true)")
	addr := fs.String("addr", "", "Control API listen address (default: 127.0.0.1:7878)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed origins")
	storePath := fs.String("store-path", "", "Task journal directory")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "AUDIODY_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "AUDIODY_LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "AUDIODY_LOG_FORMAT", ""),
			File:   getConfigValue(*logFile, "AUDIODY_LOG_FILE", ""),
		},
		Library: LibraryConfig{
			Root:  getConfigValue(*root, "AUDIODY_ROOT", ""),
			Watch: getBoolConfigValue(*watch, "AUDIODY_WATCH", true),
		},
		Download: DownloadConfig{
			Workers:      getIntConfigValue(*workers, "AUDIODY_DOWNLOAD_WORKERS", 2),
			YtDlpPath:    getConfigValue(*ytdlp, "AUDIODY_YTDLP_PATH", "yt-dlp"),
			FFmpegPath:   getConfigValue(*ffmpeg, "AUDIODY_FFMPEG_PATH", ""),
			HostRate:     getFloatConfigValue(*hostRate, "AUDIODY_HOST_RATE", 2),
			HostBurst:    getIntConfigValue(*hostBurst, "AUDIODY_HOST_BURST", 4),
			MaxCoverSize: 10 << 20,
		},
		Player: PlayerConfig{
			Enabled:    getBoolConfigValue(*playerEnabled, "AUDIODY_PLAYER", true),
			SampleRate: getIntConfigValue(*sampleRate, "AUDIODY_SAMPLE_RATE", 44100),
			Volume:     getFloatConfigValue(*volume, "AUDIODY_VOLUME", 100),
		},
		Server: ServerConfig{
			Enabled:     getBoolConfigValue(*serverEnabled, "AUDIODY_API", true),
			Addr:        getConfigValue(*addr, "AUDIODY_ADDR", "127.0.0.1:7878"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "AUDIODY_CORS_ORIGINS", "")),
		},
		Store: StoreConfig{
			Path: getConfigValue(*storePath, "AUDIODY_STORE_PATH", ""),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flagVal  string
		envKey   string
		fallback string
	}{
		{&cfg.Download.FetchTimeout, *fetchTimeout, "AUDIODY_FETCH_TIMEOUT", "30m"},
		{&cfg.Download.ToolTimeout, *toolTimeout, "AUDIODY_TOOL_TIMEOUT", "2h"},
		{&cfg.Player.PollInterval, *pollInterval, "AUDIODY_POLL_INTERVAL", "500ms"},
		{&cfg.Server.ReadTimeout, "", "AUDIODY_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "AUDIODY_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, "", "AUDIODY_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagVal, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Library.Root == "" {
		return errors.New("library root cannot be empty after expansion")
	}
	if c.Download.Workers < 1 {
		return fmt.Errorf("download workers must be at least 1, got %d", c.Download.Workers)
	}
	if c.Download.HostRate <= 0 || c.Download.HostBurst < 1 {
		return errors.New("host rate and burst must be positive")
	}
	if c.Player.Volume < 0 || c.Player.Volume > 100 {
		return fmt.Errorf("volume must be within 0-100, got %v", c.Player.Volume)
	}
	if c.Player.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.Player.SampleRate)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandPaths() error {
	audioDir, err := defaultAudioDir()
	if err != nil {
		return err
	}

	c.Library.Root, err = expandPath(c.Library.Root, filepath.Join(audioDir, AppDirName))
	if err != nil {
		return err
	}

	c.Store.Path, err = expandPath(c.Store.Path, filepath.Join(c.Library.Root, "state", "tasks"))
	if err != nil {
		return err
	}

	if c.Logger.File != "" {
		c.Logger.File, err = expandPath(c.Logger.File, "")
		if err != nil {
			return err
		}
	}
	return nil
}

// defaultAudioDir mirrors the XDG user music directory, falling back to ~/Music.
func defaultAudioDir() (string, error) {
	if dir := os.Getenv("XDG_MUSIC_DIR"); dir != "" {
		return expandPath(dir, "")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, "Music"), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strings.TrimSpace(strValue), 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- user supplied config path
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
