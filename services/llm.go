package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go_audit_backend/config"
	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
)

// ChatCompleter runs one non-streamed completion and returns the assistant
// text.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// ChatStreamer runs one streamed completion, invoking yield for every delta
// in arrival order. yield returning an error stops consumption.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, yield func(models.StreamDelta) error) error
}

// LLMClient talks to an OpenAI-compatible chat completions endpoint.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewLLMClient(cfg *config.Config) *LLMClient {
	base := strings.TrimSuffix(cfg.OpenAIBase, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &LLMClient{
		baseURL: base,
		apiKey:  cfg.OpenAIKey,
		model:   cfg.OpenAIModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *LLMClient) newRequest(ctx context.Context, body models.ChatRequest) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

func (c *LLMClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	req, err := c.newRequest(ctx, models.ChatRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logging.Logger.Error("fail closing response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion status %d", resp.StatusCode)
	}
	var chatResp models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("chat completion error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return chatResp.Choices[0].Message.Content, nil
}

func (c *LLMClient) StreamChat(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, yield func(models.StreamDelta) error) error {
	req, err := c.newRequest(ctx, models.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
	})
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logging.Logger.Error("fail closing response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat stream status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk models.ChatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			logging.Logger.Error("fail decoding stream chunk", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		for _, tc := range choice.Delta.ToolCalls {
			frag := models.ToolCallFragment{
				Index:     tc.Index,
				CallID:    tc.ID,
				CallType:  tc.Type,
				Name:      tc.Function.Name,
				ArgsPiece: tc.Function.Arguments,
			}
			if err := yield(models.StreamDelta{ToolFragment: &frag}); err != nil {
				return err
			}
		}
		if choice.Delta.Content != "" {
			if err := yield(models.StreamDelta{Text: choice.Delta.Content}); err != nil {
				return err
			}
		}
		if choice.FinishReason != "" {
			if err := yield(models.StreamDelta{FinishReason: choice.FinishReason}); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}
