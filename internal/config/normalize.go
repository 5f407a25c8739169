package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeBackend()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeWatch()
	c.normalizeUpload()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeBackend() {
	if value, ok := os.LookupEnv("TRANSCRIBER_BACKEND_URL"); ok && strings.TrimSpace(value) != "" {
		c.Backend.URL = value
	}
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	if c.Backend.URL == "" {
		c.Backend.URL = defaultBackendURL
	}
	if value, ok := os.LookupEnv("TRANSCRIBER_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.Backend.Username = value
	}
	c.Backend.Username = strings.TrimSpace(c.Backend.Username)
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = defaultBackendTimeout
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageSQLite
	}
	var err error
	if c.Storage.Path, err = expandPath(strings.TrimSpace(c.Storage.Path)); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeWatch() {
	if c.Watch.PollIntervalSeconds <= 0 {
		c.Watch.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Watch.MaxRequestsPerSecond <= 0 {
		c.Watch.MaxRequestsPerSecond = defaultMaxRequestsPerSec
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.FFmpegBinary = strings.TrimSpace(c.Upload.FFmpegBinary)
	if c.Upload.FFmpegBinary == "" {
		c.Upload.FFmpegBinary = defaultFFmpegBinary
	}
	c.Upload.FFprobeBinary = strings.TrimSpace(c.Upload.FFprobeBinary)
	if c.Upload.FFprobeBinary == "" {
		c.Upload.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
