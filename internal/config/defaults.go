package config

const (
	defaultDataDir = "~/.local/share/calldesk"
	defaultLogDir  = "~/.local/share/calldesk/logs"

	defaultTranscriptionLanguage = "en"
	defaultTranscriptionTimeout  = 120

	defaultExtractionModel            = "claude-sonnet-4-5-20250929"
	defaultExtractionMaxTokens        = 2048
	defaultExtractionTimeout          = 60
	defaultExtractionMinJobConfidence = 0.30

	defaultMatchingNameThreshold = 80.0

	defaultNotifyRequestTimeout = 10

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultAnalyticsSchedule = "0 3 * * *"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Transcription: Transcription{
			Language:       defaultTranscriptionLanguage,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Extraction: Extraction{
			Model:            defaultExtractionModel,
			MaxTokens:        defaultExtractionMaxTokens,
			TimeoutSeconds:   defaultExtractionTimeout,
			MinJobConfidence: defaultExtractionMinJobConfidence,
		},
		Matching: Matching{
			NameThreshold: defaultMatchingNameThreshold,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Calls:          true,
			Extractions:    true,
			Feedback:       true,
			Jobs:           true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Analytics: Analytics{
			Enabled:         true,
			RefreshSchedule: defaultAnalyticsSchedule,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
