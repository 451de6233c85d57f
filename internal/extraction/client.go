package extraction

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"calldesk/internal/config"
	"calldesk/internal/services"
)

// Collaborator produces a structured-extraction response for a transcript.
type Collaborator interface {
	Complete(ctx context.Context, system, transcript string) (string, error)
}

type anthropicCollaborator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropicCollaborator(cfg *config.Config) *anthropicCollaborator {
	maxTokens := int64(cfg.Extraction.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &anthropicCollaborator{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.Extraction.APIKey)),
		model:     cfg.Extraction.Model,
		maxTokens: maxTokens,
	}
}

func (c *anthropicCollaborator) Complete(ctx context.Context, system, transcript string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(transcript)),
		},
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "extract", "complete", "model request failed", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", services.Wrap(services.ErrExternalService, "extract", "complete", "no text content in model response", nil)
}
