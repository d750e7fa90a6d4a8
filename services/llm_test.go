package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_audit_backend/config"
	"go_audit_backend/models"
)

func newTestLLMClient(serverURL string) *LLMClient {
	return NewLLMClient(&config.Config{
		OpenAIBase:  serverURL,
		OpenAIKey:   "test-key",
		OpenAIModel: "test-model",
	})
}

func TestComplete_ReturnsAssistantText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"the answer"}}]}`)
	}))
	defer server.Close()

	client := newTestLLMClient(server.URL)
	reply, err := client.Complete(context.Background(), []models.ChatMessage{{Role: "user", Content: "q"}})
	require.NoError(t, err)
	assert.Equal(t, "the answer", reply)
}

func TestComplete_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestLLMClient(server.URL)
	_, err := client.Complete(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"quota exceeded"}}`)
	}))
	defer server.Close()

	client := newTestLLMClient(server.URL)
	_, err := client.Complete(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestStreamChat_YieldsTextAndToolFragments(t *testing.T) {
	frames := []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"search_audit_db","arguments":"{\"key"}}]}}]}`,
		``,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"words\":[]}"}}]}}]}`,
		``,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		``,
		`data: [DONE]`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprintln(w, frame)
		}
	}))
	defer server.Close()

	client := newTestLLMClient(server.URL)

	var texts []string
	var fragments []models.ToolCallFragment
	var finish string
	err := client.StreamChat(context.Background(), nil, nil, func(delta models.StreamDelta) error {
		switch {
		case delta.ToolFragment != nil:
			fragments = append(fragments, *delta.ToolFragment)
		case delta.Text != "":
			texts = append(texts, delta.Text)
		case delta.FinishReason != "":
			finish = delta.FinishReason
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, texts)
	require.Len(t, fragments, 2)
	assert.Equal(t, "call_1", fragments[0].CallID)
	assert.Equal(t, "search_audit_db", fragments[0].Name)
	assert.Equal(t, `{"key`, fragments[0].ArgsPiece)
	assert.Equal(t, `words":[]}`, fragments[1].ArgsPiece)
	assert.Equal(t, "tool_calls", finish)
}

func TestStreamChat_SkipsMalformedFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `data: not json at all`)
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"ok"}}]}`)
		fmt.Fprintln(w, `data: [DONE]`)
	}))
	defer server.Close()

	client := newTestLLMClient(server.URL)
	var texts []string
	err := client.StreamChat(context.Background(), nil, nil, func(delta models.StreamDelta) error {
		if delta.Text != "" {
			texts = append(texts, delta.Text)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, texts)
}

func TestStreamChat_YieldErrorStopsConsumption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"first"}}]}`)
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"second"}}]}`)
	}))
	defer server.Close()

	client := newTestLLMClient(server.URL)
	calls := 0
	err := client.StreamChat(context.Background(), nil, nil, func(models.StreamDelta) error {
		calls++
		return fmt.Errorf("stop now")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
