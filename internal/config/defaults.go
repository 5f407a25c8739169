package config

const (
	defaultConfigPath          = "~/.config/transcriber/config.toml"
	defaultBackendURL          = "http://localhost:6545"
	defaultBackendTimeout      = 30
	defaultStateDir            = "~/.local/share/transcriber"
	defaultLogDir              = "~/.local/share/transcriber/logs"
	defaultPollIntervalSeconds = 5
	defaultMaxRequestsPerSec   = 1.0
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Storage backends accepted by storage.backend.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Backend: Backend{
			URL:            defaultBackendURL,
			TimeoutSeconds: defaultBackendTimeout,
		},
		Storage: Storage{
			Backend: StorageSQLite,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Watch: Watch{
			PollIntervalSeconds:  defaultPollIntervalSeconds,
			MaxRequestsPerSecond: defaultMaxRequestsPerSec,
		},
		Upload: Upload{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			ProbeMedia:    true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
