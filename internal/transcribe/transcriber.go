package transcribe

import (
	"context"
	"log/slog"

	"calldesk/internal/config"
	"calldesk/internal/services"
)

// Result is the transcript produced for one call recording.
type Result struct {
	Text            string  `json:"text"`
	Confidence      float64 `json:"confidence"`
	DurationSeconds float64 `json:"duration_seconds"`
	Language        string  `json:"language"`
}

// Transcriber converts a call recording reference into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (*Result, error)
}

// NewFromConfig returns the HTTP transcriber when a base URL is configured
// and an unconfigured placeholder otherwise. The placeholder fails with a
// configuration error so affected calls park in review rather than failed.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) Transcriber {
	if cfg.Transcription.BaseURL == "" {
		return unconfigured{}
	}
	return newHTTPTranscriber(cfg, logger)
}

type unconfigured struct{}

func (unconfigured) Transcribe(ctx context.Context, audioRef string) (*Result, error) {
	return nil, services.Wrap(services.ErrConfiguration, "transcribe", "transcribe",
		"transcription base URL is not configured", nil)
}
