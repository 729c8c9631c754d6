// Package llm wraps the OpenAI-compatible chat-completion API used to
// compose proactive replies, including persona (system prompt) resolution.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"aireplay/internal/config"
	"aireplay/internal/storage"
	logx "aireplay/pkg/logx"
)

const defaultTimeout = 60 * time.Second

// continuationPrompt is used when no custom prompt template is configured:
// the model is asked to pick the conversation back up on its own.
const continuationPrompt = "The conversation has gone quiet for a while. " +
	"Continue it naturally in your own voice: follow up on the last topic, " +
	"or start something new the other person would plausibly care about. " +
	"Keep it short and do not mention that you were asked to do this."

var ErrNoCompletion = errors.New("llm returned no completion")

// Settings is the parsed form of config.LLMConfig.
type Settings struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	Personas       map[string]string
	DefaultPersona string
}

// ParseSettings normalizes the raw config section.
func ParseSettings(cfg config.LLMConfig, log logx.Logger) Settings {
	st := Settings{
		BaseURL:        strings.TrimSpace(cfg.BaseURL),
		APIKey:         cfg.APIKey,
		Model:          strings.TrimSpace(cfg.Model),
		Timeout:        defaultTimeout,
		Personas:       cfg.Personas,
		DefaultPersona: strings.TrimSpace(cfg.DefaultPersona),
	}
	if d, err := config.ParseDurationField("llm.timeout", cfg.Timeout); err != nil {
		log.Warn("invalid llm timeout, using default", logx.String("value", cfg.Timeout), logx.Err(err))
	} else if d > 0 {
		st.Timeout = d
	}
	return st
}

// Request is one proactive completion.
type Request struct {
	System  string         // resolved persona prompt; empty means none
	History []storage.Turn // oldest first
	Prompt  string         // empty means "continue naturally"
}

// Client is a hot-reloadable chat-completion client.
type Client struct {
	log logx.Logger

	mu  sync.Mutex
	st  Settings
	api *openai.Client
}

func New(cfg config.LLMConfig, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{log: log}
	c.Apply(cfg)
	return c
}

// Apply rebuilds the underlying client for a new config.
func (c *Client) Apply(cfg config.LLMConfig) {
	st := ParseSettings(cfg, c.log)

	clientConfig := openai.DefaultConfig(st.APIKey)
	if st.BaseURL != "" {
		clientConfig.BaseURL = st.BaseURL
	}

	c.mu.Lock()
	c.st = st
	c.api = openai.NewClientWithConfig(clientConfig)
	c.mu.Unlock()
}

// ResolvePersona returns the system prompt for a conversation, falling
// through override -> session persona -> default. Unknown ids are skipped,
// not errors.
func (c *Client) ResolvePersona(overrideID, sessionID string) string {
	c.mu.Lock()
	st := c.st
	c.mu.Unlock()

	for _, id := range []string{overrideID, sessionID, st.DefaultPersona} {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if prompt, ok := st.Personas[id]; ok {
			return prompt
		}
	}
	return ""
}

// Continue asks the model for the next assistant turn.
func (c *Client) Continue(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	st := c.st
	api := c.api
	c.mu.Unlock()

	if st.Model == "" {
		return "", errors.New("llm model not configured")
	}

	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	prompt := req.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = continuationPrompt
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	cctx, cancel := context.WithTimeout(ctx, st.Timeout)
	defer cancel()

	resp, err := api.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
		Model:    st.Model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoCompletion
	}
	return text, nil
}
