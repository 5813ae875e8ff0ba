package ai

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// KeyPrefix — обязательный префикс ключа API.
const KeyPrefix = "sk-"

var ErrInvalidCredential = errors.New("invalid api key format")

// ValidateKey проверяет только формат ключа: непустой и начинается с "sk-". В сеть не ходит.
func ValidateKey(key string) error {
	if key == "" || !strings.HasPrefix(key, KeyPrefix) {
		return ErrInvalidCredential
	}
	return nil
}

// Options — общие настройки построения клиента.
type Options struct {
	BaseURL string // пусто — адрес по умолчанию SDK
	Stub    bool   // отвечать заглушкой вместо реальных запросов
}

// Factory строит клиента по уже проверенному ключу.
type Factory func(apiKey string) Provider

// NewFactory возвращает фабрику OpenAI-клиентов либо заглушек (opts.Stub).
func NewFactory(opts Options, logger *zap.SugaredLogger) Factory {
	if opts.Stub {
		return func(string) Provider { return NewStubClient() }
	}
	return func(apiKey string) Provider { return NewOpenAIClient(apiKey, opts, logger) }
}

// NewProviderFromKey — ворота учётных данных: при валидном формате строит клиента.
func NewProviderFromKey(key string, factory Factory) (Provider, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return factory(key), nil
}
