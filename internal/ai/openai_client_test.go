package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SkillChat/internal/service/conversation"
	"SkillChat/internal/service/params"
	"SkillChat/internal/service/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient("sk-test", Options{BaseURL: srv.URL + "/v1/"}, zap.NewNop().Sugar())
}

func sseChunk(content string) string {
	chunk := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": content}, "finish_reason": nil},
		},
	}
	b, _ := json.Marshal(chunk)
	return "data: " + string(b) + "\n\n"
}

func writeSSE(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, e := range events {
		_, _ = io.WriteString(w, e)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func TestStreamChat_SendsHistoryAndParams(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeSSE(w, sseChunk(""), sseChunk("Hi"), sseChunk(" there"), "data: [DONE]\n\n")
	})

	req := ChatRequest{
		Messages: []conversation.Message{
			{Role: conversation.RoleUser, Content: "Hello"},
			{Role: conversation.RoleAssistant, Content: "Hi"},
			{Role: conversation.RoleUser, Content: "Again"},
		},
		Params: params.Generation{
			Temperature: 0.3, MaxTokens: 100, TopP: 0.9,
			FrequencyPenalty: 0, PresencePenalty: 0, Model: "gpt-4",
		},
	}
	s, err := client.StreamChat(context.Background(), req)
	require.NoError(t, err)
	defer s.Close()

	full, err := stream.Consume(s, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", full)

	assert.Equal(t, "gpt-4", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.Equal(t, 0.3, body["temperature"])
	assert.Equal(t, float64(100), body["max_tokens"])
	assert.Equal(t, 0.9, body["top_p"])
	assert.Equal(t, float64(0), body["frequency_penalty"])
	assert.Equal(t, float64(0), body["presence_penalty"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	for i, want := range req.Messages {
		m := msgs[i].(map[string]any)
		assert.Equal(t, string(want.Role), m["role"])
		assert.Equal(t, want.Content, m["content"])
	}
}

func TestStreamChat_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	})

	_, err := client.StreamChat(context.Background(), ChatRequest{
		Messages: []conversation.Message{{Role: conversation.RoleUser, Content: "Hello"}},
		Params:   params.Generation{Model: "gpt-4", MaxTokens: 1},
	})
	require.Error(t, err)
}

func TestStreamChat_MalformedChunk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, sseChunk("Hi"), "data: {not json\n\n")
	})

	s, err := client.StreamChat(context.Background(), ChatRequest{
		Messages: []conversation.Message{{Role: conversation.RoleUser, Content: "Hello"}},
		Params:   params.Generation{Model: "gpt-4", MaxTokens: 1},
	})
	require.NoError(t, err)
	defer s.Close()

	full, err := stream.Consume(s, nil)
	require.Error(t, err)
	assert.Empty(t, full)
}

func TestChatParams_RejectsUnknownRole(t *testing.T) {
	_, err := ChatParams(ChatRequest{Messages: []conversation.Message{{Role: "system", Content: "x"}}})
	require.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4-vision-preview",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"A cat."}}]}`)
	})

	out, err := client.Analyze(context.Background(), VisionRequest{
		Model: "gpt-4-vision-preview", Text: "What is this?", ImageURL: "data:image/jpeg;base64,AAAA", MaxTokens: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, "A cat.", out)

	assert.Equal(t, float64(300), body["max_tokens"])
	_, streamed := body["stream"]
	assert.False(t, streamed)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	assert.Equal(t, "What is this?", content[0].(map[string]any)["text"])
	assert.Equal(t, "image_url", content[1].(map[string]any)["type"])
	assert.Equal(t, "data:image/jpeg;base64,AAAA", content[1].(map[string]any)["image_url"].(map[string]any)["url"])
}

func TestAnalyze_ResponseShapeMismatch(t *testing.T) {
	const raw = `{"id":"c1","object":"chat.completion","created":1,"model":"m"}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, raw)
	})

	_, err := client.Analyze(context.Background(), VisionRequest{Model: "m", Text: "x"})
	se, ok := IsResponseShape(err)
	require.True(t, ok, "got %v", err)
	assert.JSONEq(t, raw, se.Raw)
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/images/generations"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"created":1,"data":[{"url":"https://img/1"},{"url":"https://img/2"},{"b64_json":"QUJD"}]}`)
	})

	imgs, err := client.Generate(context.Background(), ImageRequest{
		Model: "dall-e-3", Prompt: "a white siamese cat", Size: "1024x1024", Quality: "hd", Count: 3,
	})
	require.NoError(t, err)
	require.Len(t, imgs, 3)
	assert.Equal(t, "https://img/1", imgs[0].Source())
	assert.Equal(t, "https://img/2", imgs[1].Source())
	assert.Equal(t, "data:image/png;base64,QUJD", imgs[2].Source())

	assert.Equal(t, "dall-e-3", body["model"])
	assert.Equal(t, "a white siamese cat", body["prompt"])
	assert.Equal(t, "1024x1024", body["size"])
	assert.Equal(t, "hd", body["quality"])
	assert.Equal(t, float64(3), body["n"])
}

func TestGenerate_EmptyData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created":1,"data":[]}`)
	})

	_, err := client.Generate(context.Background(), ImageRequest{Model: "dall-e-2", Prompt: "x", Size: "256x256", Quality: "standard", Count: 1})
	_, ok := IsResponseShape(err)
	assert.True(t, ok)
}
