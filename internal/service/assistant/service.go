// Package assistant wraps the chat model that helps users compose and
// digest IRC conversation.
package assistant

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/deadhop/engine/internal/config"
)

const systemPrompt = "You are a concise IRC assistant. You help the user follow " +
	"busy channels: summarize what happened, answer questions about the " +
	"conversation, and suggest short replies in the user's voice. Plain text " +
	"only, no markup, IRC lines stay under 400 characters."

// Service runs assistant requests through a compiled prompt chain.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AssistantConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	httpc     *http.Client
}

// NewService builds the chain: system prompt, conversation excerpt,
// user query, chat model.
func NewService(ctx context.Context, cfg config.AssistantConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile assistant chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
		httpc:     &http.Client{Timeout: 2 * time.Second},
	}, nil
}

// StreamingEnabled reports whether streamed output is configured.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Healthy probes the model endpoint. Any HTTP answer counts; only a
// transport failure marks the backend down.
func (s *Service) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("assistant backend unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Generate answers one query over the supplied conversation excerpt.
func (s *Service) Generate(ctx context.Context, excerpt []string, query string) (string, error) {
	response, err := s.chain.Invoke(ctx, s.chainInput(excerpt, query))
	if err != nil {
		return "", fmt.Errorf("failed to run assistant chain: %w", err)
	}
	log.Printf("[assistant] generated response, length=%d", len(response.Content))
	return response.Content, nil
}

// Stream streams the answer chunk by chunk.
func (s *Service) Stream(ctx context.Context, excerpt []string, query string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}
	stream, err := s.chain.Stream(ctx, s.chainInput(excerpt, query))
	if err != nil {
		return nil, fmt.Errorf("failed to stream assistant chain output: %w", err)
	}
	return stream, nil
}

// chainInput folds the conversation excerpt into alternating history
// messages. Each excerpt line is one archived IRC line, oldest first.
func (s *Service) chainInput(excerpt []string, query string) map[string]any {
	const historyLimit = 50
	if len(excerpt) > historyLimit {
		excerpt = excerpt[len(excerpt)-historyLimit:]
	}
	history := make([]*schema.Message, 0, len(excerpt))
	for _, line := range excerpt {
		history = append(history, schema.UserMessage(line))
	}
	return map[string]any{
		"system":  systemPrompt,
		"history": history,
		"query":   query,
	}
}
