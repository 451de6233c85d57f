package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"calldesk/internal/config"
	"calldesk/internal/services"
)

type httpTranscriber struct {
	baseURL  string
	apiKey   string
	language string
	client   *http.Client
	logger   *slog.Logger
}

func newHTTPTranscriber(cfg *config.Config, logger *slog.Logger) *httpTranscriber {
	timeout := time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpTranscriber{
		baseURL:  strings.TrimRight(cfg.Transcription.BaseURL, "/"),
		apiKey:   cfg.Transcription.APIKey,
		language: cfg.Transcription.Language,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language,omitempty"`
}

// Transcribe submits the recording reference and waits for the transcript.
// The service is synchronous; the HTTP client timeout bounds the wait.
func (t *httpTranscriber) Transcribe(ctx context.Context, audioRef string) (*Result, error) {
	if strings.TrimSpace(audioRef) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "transcribe",
			"audio reference is required", nil)
	}

	body, err := json.Marshal(transcribeRequest{AudioURL: audioRef, Language: t.language})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "transcribe", "encode", "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/transcriptions", bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "transcribe", "request", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		marker := services.ErrExternalService
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "transcribe", "request", "transcription request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, services.Wrap(services.ErrExternalService, "transcribe", "request",
			fmt.Sprintf("transcription service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "transcribe", "decode", "unparseable transcription response", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return nil, services.Wrap(services.ErrExternalService, "transcribe", "decode", "empty transcript", nil)
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	t.logger.Debug("transcription completed",
		slog.Float64(keyDurationSeconds, result.DurationSeconds),
		slog.Float64(keyConfidence, result.Confidence),
		slog.Duration("elapsed", time.Since(start)),
	)
	return &result, nil
}

const (
	keyDurationSeconds = "duration_seconds"
	keyConfidence      = "confidence"
)
