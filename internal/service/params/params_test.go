package params

import (
	"math"
	"testing"

	"SkillChat/internal/service/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPanel_Defaults(t *testing.T) {
	p := NewPanel(catalog.Default(), catalog.PreferredDefault)

	assert.Equal(t, Generation{
		Temperature:      1.0,
		MaxTokens:        256,
		TopP:             1.0,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		Model:            "gpt-3.5-turbo",
	}, p.Get())
}

func TestNewPanel_FallsBackToFirstModel(t *testing.T) {
	p := NewPanel(catalog.Default(), "not-there")
	assert.Equal(t, "gpt-4-turbo", p.Get().Model)
}

func TestPanel_Clamps(t *testing.T) {
	p := NewPanel(catalog.Default(), catalog.PreferredDefault)

	tests := []struct {
		name string
		set  func()
		got  func() float64
		want float64
	}{
		{"temperature high", func() { p.SetTemperature(5) }, func() float64 { return p.Get().Temperature }, 2},
		{"temperature low", func() { p.SetTemperature(-1) }, func() float64 { return p.Get().Temperature }, 0},
		{"temperature nan", func() { p.SetTemperature(math.NaN()) }, func() float64 { return p.Get().Temperature }, 0},
		{"max tokens high", func() { p.SetMaxTokens(10_000) }, func() float64 { return float64(p.Get().MaxTokens) }, 500},
		{"max tokens low", func() { p.SetMaxTokens(0) }, func() float64 { return float64(p.Get().MaxTokens) }, 1},
		{"top p high", func() { p.SetTopP(1.5) }, func() float64 { return p.Get().TopP }, 1},
		{"frequency", func() { p.SetFrequencyPenalty(3) }, func() float64 { return p.Get().FrequencyPenalty }, 2},
		{"presence", func() { p.SetPresencePenalty(-0.5) }, func() float64 { return p.Get().PresencePenalty }, 0},
		{"in range", func() { p.SetTopP(0.9) }, func() float64 { return p.Get().TopP }, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.set()
			assert.Equal(t, tt.want, tt.got())
		})
	}
}

func TestPanel_SetModel(t *testing.T) {
	p := NewPanel(catalog.Default(), catalog.PreferredDefault)

	require.NoError(t, p.SetModel("gpt-4"))
	assert.Equal(t, "gpt-4", p.Get().Model)

	err := p.SetModel("gpt-9")
	require.ErrorIs(t, err, catalog.ErrUnknownModel)
	assert.Equal(t, "gpt-4", p.Get().Model)
}

func TestPanel_Apply(t *testing.T) {
	p := NewPanel(catalog.Default(), catalog.PreferredDefault)
	temp, tokens, topP := 0.3, int64(100), 0.9

	require.NoError(t, p.Apply(Update{Temperature: &temp, MaxTokens: &tokens, TopP: &topP}))
	got := p.Get()
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, int64(100), got.MaxTokens)
	assert.Equal(t, 0.9, got.TopP)
	assert.Equal(t, 0.0, got.FrequencyPenalty)
	assert.Equal(t, 0.0, got.PresencePenalty)

	bad := "gpt-9"
	hot := 1.7
	require.Error(t, p.Apply(Update{Model: &bad, Temperature: &hot}))
	assert.Equal(t, 0.3, p.Get().Temperature, "rejected update leaves the panel untouched")
}
