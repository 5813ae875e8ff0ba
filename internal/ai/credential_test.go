package ai

import (
	"context"
	"testing"

	"SkillChat/internal/service/conversation"
	"SkillChat/internal/service/params"
	"SkillChat/internal/service/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", "sk", "SK-abc", " sk-abc", "pk-123", "abc"} {
		assert.ErrorIs(t, ValidateKey(key), ErrInvalidCredential, "key %q", key)
	}
	for _, key := range []string{"sk-", "sk-abc123", "sk-proj-xyz"} {
		assert.NoError(t, ValidateKey(key), "key %q", key)
	}
}

func TestNewProviderFromKey(t *testing.T) {
	calls := 0
	factory := func(string) Provider { calls++; return NewStubClient() }

	p, err := NewProviderFromKey("nope", factory)
	require.ErrorIs(t, err, ErrInvalidCredential)
	assert.Nil(t, p)
	assert.Equal(t, 0, calls, "no client is built for an invalid key")

	p, err = NewProviderFromKey("sk-good", factory)
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, 1, calls)
}

func TestNewFactory(t *testing.T) {
	logger := zap.NewNop().Sugar()
	assert.IsType(t, &StubClient{}, NewFactory(Options{Stub: true}, logger)("sk-x"))
	assert.IsType(t, &OpenAIClient{}, NewFactory(Options{}, logger)("sk-x"))
}

func TestStubClient(t *testing.T) {
	c := NewStubClient()
	s, err := c.StreamChat(context.Background(), ChatRequest{
		Messages: []conversation.Message{{Role: conversation.RoleUser, Content: "ping"}},
		Params:   params.Generation{Model: "gpt-4"},
	})
	require.NoError(t, err)
	full, err := stream.Consume(s, nil)
	require.NoError(t, err)
	assert.Equal(t, "запрос получен (gpt-4): ping", full)

	imgs, err := c.Generate(context.Background(), ImageRequest{Count: 2})
	require.NoError(t, err)
	assert.Len(t, imgs, 2)
}
