package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if c.Upload.TimeoutSeconds < 0 {
		return errors.New("upload.timeout_seconds must not be negative")
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	raw := strings.TrimSpace(c.Backend.URL)
	if raw == "" {
		return errors.New("backend.url must be set (or set TRANSCRIBER_BACKEND_URL)")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("backend.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.url must use http or https, got %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("backend.url must include a host, got %q", raw)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return errors.New("backend.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageSQLite, StorageFile, StorageMemory:
		return nil
	default:
		return fmt.Errorf("storage.backend must be one of %q, %q or %q, got %q",
			StorageSQLite, StorageFile, StorageMemory, c.Storage.Backend)
	}
}

func (c *Config) validateWatch() error {
	if c.Watch.PollIntervalSeconds <= 0 {
		return errors.New("watch.poll_interval_seconds must be positive")
	}
	if c.Watch.MaxRequestsPerSecond <= 0 {
		return errors.New("watch.max_requests_per_second must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil {
		return fmt.Errorf("notifications.ntfy_topic: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full topic URL, got %q", topic)
	}
	return nil
}
