package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
)

const (
	EnvConfigPath  = "KARSYNC_CONFIG"
	AppName        = "karsync"
	ConfigFileName = "config.yaml"

	DefaultRetention = 90 * 24 * time.Hour
)

// DefaultAllowedOrigins are the origins of the desktop front-end
var DefaultAllowedOrigins = []string{
	"tauri://localhost",
	"http://tauri.localhost",
	"http://localhost:1420",
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Rclone        RcloneConfig        `yaml:"rclone"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Auth          AuthConfig          `yaml:"auth"`
	Gatekeeper    GatekeeperConfig    `yaml:"gatekeeper"`
	Database      DatabaseConfig      `yaml:"database"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`

	mu       sync.RWMutex
	watchers []chan<- struct{}
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins lists the browser origins that may call the API.
	// Requests carrying any other Origin are refused.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RcloneConfig struct {
	Binary          string        `yaml:"binary"`
	DaemonAddr      string        `yaml:"daemon_addr"`
	LogFile         string        `yaml:"log_file"`
	LogLevel        string        `yaml:"log_level"`
	StartupAttempts int           `yaml:"startup_attempts"`
	StartupInterval time.Duration `yaml:"startup_interval"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	StatsInterval   time.Duration `yaml:"stats_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// BaseURL is the rc endpoint of the daemon
func (r RcloneConfig) BaseURL() string {
	if strings.HasPrefix(r.DaemonAddr, "http://") || strings.HasPrefix(r.DaemonAddr, "https://") {
		return strings.TrimSuffix(r.DaemonAddr, "/")
	}
	return "http://" + r.DaemonAddr
}

type ArchiveConfig struct {
	SubfolderName      string `yaml:"subfolder_name"`
	BackupPrefix       string `yaml:"backup_prefix"`
	DefaultSource      string `yaml:"default_source"`
	DefaultDestination string `yaml:"default_destination"`
}

type AuthConfig struct {
	ProfileName string `yaml:"profile_name"`
	Provider    string `yaml:"provider"`
	URLMarker   string `yaml:"url_marker"`
}

type GatekeeperConfig struct {
	// MinFreeBytes is the free space the destination volume must keep; 0 disables the check
	MinFreeBytes uint64 `yaml:"min_free_bytes"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
	// Retention is how long finished transfers stay in the history
	Retention time.Duration `yaml:"retention"`
}

type NotificationsConfig struct {
	Pushover PushoverConfig `yaml:"pushover"`
}

type PushoverConfig struct {
	Token         string        `yaml:"token"`
	User          string        `yaml:"user"`
	Enabled       bool          `yaml:"enabled"`
	Priority      int           `yaml:"priority"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	ExpireTime    time.Duration `yaml:"expire_time"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// Load loads configuration from file with environment variable expansion.
// An empty path yields the defaults.
func Load(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		if configPath == "" {
			globalConfig, err = loadDefaults()
			return
		}
		globalConfig, err = loadConfig(configPath)
		if err == nil && globalConfig != nil {
			go globalConfig.watchConfig(configPath)
		}
	})
	return globalConfig, err
}

// Get returns the global configuration instance
func Get() *Config {
	if globalConfig == nil {
		panic("configuration not loaded - call Load() first")
	}
	return globalConfig
}

// ResolvePath picks the config file: $KARSYNC_CONFIG, then flagPath, then
// config.yaml in the app data dir or the working directory. It returns ""
// when none exists.
func ResolvePath(flagPath string) string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if flagPath != "" {
		return flagPath
	}

	candidates := []string{ConfigFileName}
	if dir, err := AppDataDir(); err == nil {
		candidates = append([]string{filepath.Join(dir, ConfigFileName)}, candidates...)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func loadDefaults() (*Config, error) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return cfg, nil
}

func loadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	content := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := config.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	dataDir, err := AppDataDir()
	if err != nil {
		dataDir = "."
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8765
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}

	if c.Rclone.Binary == "" {
		c.Rclone.Binary = "rclone"
	}
	if c.Rclone.DaemonAddr == "" {
		c.Rclone.DaemonAddr = "localhost:5572"
	}
	if c.Rclone.LogFile == "" {
		c.Rclone.LogFile = filepath.Join(dataDir, "rclone.log")
	}
	if c.Rclone.LogLevel == "" {
		c.Rclone.LogLevel = "INFO"
	}
	if c.Rclone.StartupAttempts == 0 {
		c.Rclone.StartupAttempts = 20
	}
	if c.Rclone.StartupInterval == 0 {
		c.Rclone.StartupInterval = 500 * time.Millisecond
	}
	if c.Rclone.PollInterval == 0 {
		c.Rclone.PollInterval = time.Second
	}
	if c.Rclone.StatsInterval == 0 {
		c.Rclone.StatsInterval = 2 * time.Second
	}
	if c.Rclone.RequestTimeout == 0 {
		c.Rclone.RequestTimeout = 30 * time.Second
	}

	if c.Archive.SubfolderName == "" {
		c.Archive.SubfolderName = "Unofficial-Neuro-Karaoke-Archive"
	}
	if c.Archive.BackupPrefix == "" {
		c.Archive.BackupPrefix = "Backup-KAR-"
	}

	if c.Auth.ProfileName == "" {
		c.Auth.ProfileName = "gdrive_unofficial_neuro_kar"
	}
	if c.Auth.Provider == "" {
		c.Auth.Provider = "drive"
	}
	if c.Auth.URLMarker == "" {
		c.Auth.URLMarker = "Please go to the following link: "
	}

	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(dataDir, "karsync.db")
	}
	if c.Database.Retention == 0 {
		c.Database.Retention = DefaultRetention
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 28
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	for _, origin := range c.Server.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
			return fmt.Errorf("invalid allowed origin: %q", origin)
		}
	}

	if c.Database.Retention < 0 {
		return fmt.Errorf("database retention cannot be negative")
	}

	if c.Rclone.StartupAttempts < 0 {
		return fmt.Errorf("startup_attempts cannot be negative")
	}

	if c.Rclone.DaemonAddr == "" {
		return fmt.Errorf("rclone daemon_addr is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	if c.Notifications.Pushover.Enabled {
		if c.Notifications.Pushover.Token == "" || strings.HasPrefix(c.Notifications.Pushover.Token, "${") {
			return fmt.Errorf("pushover token is required when notifications are enabled")
		}
		if c.Notifications.Pushover.User == "" || strings.HasPrefix(c.Notifications.Pushover.User, "${") {
			return fmt.Errorf("pushover user is required when notifications are enabled")
		}
	}

	return nil
}

func (c *Config) ensureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.Rclone.LogFile),
	}

	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// WatchForChanges registers a channel to receive notifications when config changes
func (c *Config) WatchForChanges() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan struct{}, 1)
	c.watchers = append(c.watchers, ch)
	return ch
}

func (c *Config) watchConfig(configPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create config watcher", "error", err)
		return
	}
	defer watcher.Close()

	configDir := filepath.Dir(configPath)
	if err := watcher.Add(configDir); err != nil {
		slog.Error("failed to watch config directory", "error", err, "path", configDir)
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) == filepath.Base(configPath) &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				slog.Info("config file changed, reloading", "file", configPath)

				// Small delay to ensure file write is complete
				time.Sleep(100 * time.Millisecond)

				if err := c.reload(configPath); err != nil {
					slog.Error("failed to reload config", "error", err)
				} else {
					c.notifyWatchers()
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

// reload swaps in the sections read on every use. Daemon, archive and
// database settings are fixed at startup.
func (c *Config) reload(configPath string) error {
	newConfig, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.Gatekeeper = newConfig.Gatekeeper
	c.Notifications = newConfig.Notifications
	c.Logging = newConfig.Logging

	slog.Info("configuration reloaded successfully")
	return nil
}

func (c *Config) notifyWatchers() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, watcher := range c.watchers {
		select {
		case watcher <- struct{}{}:
		default:
		}
	}
}

// GetRClone returns a copy of the rclone configuration
func (c *Config) GetRClone() RcloneConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rclone
}

func (c *Config) GetArchive() ArchiveConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Archive
}

func (c *Config) GetAuth() AuthConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Auth
}

// GetServer returns a copy of the server configuration
func (c *Config) GetServer() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// GetGatekeeper returns a copy of the gatekeeper configuration
func (c *Config) GetGatekeeper() GatekeeperConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Gatekeeper
}

// GetDatabase returns a copy of the database configuration
func (c *Config) GetDatabase() DatabaseConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Database
}

// GetNotifications returns a copy of the notifications configuration
func (c *Config) GetNotifications() NotificationsConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notifications
}

// GetLogging returns a copy of the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}
