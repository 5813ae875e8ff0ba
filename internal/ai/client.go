package ai

import (
	"context"
	"errors"
	"fmt"

	"SkillChat/internal/service/conversation"
	"SkillChat/internal/service/params"
	"SkillChat/internal/service/stream"
)

// Provider — единая абстракция клиента модели: стрим чата, анализ изображения и генерация картинок.
// Все реализации должны быть взаимозаменяемыми.
type Provider interface {
	ChatStreamer
	VisionAnalyzer
	ImageGenerator
}

// FragmentStream — поток фрагментов ответа; после чтения его нужно закрыть.
type FragmentStream interface {
	stream.Source
	Close() error
}

type ChatStreamer interface {
	// StreamChat отправляет всю историю с параметрами и возвращает инкрементальный ответ.
	StreamChat(ctx context.Context, req ChatRequest) (FragmentStream, error)
}

type VisionAnalyzer interface {
	// Analyze отправляет одно сообщение (текст + опционально картинка) без стрима.
	Analyze(ctx context.Context, req VisionRequest) (string, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) ([]GeneratedImage, error)
}

// ChatRequest — запрос завершения: история в порядке журнала и параметры панели.
type ChatRequest struct {
	Messages []conversation.Message
	Params   params.Generation
}

// VisionRequest — один пользовательский запрос анализа.
type VisionRequest struct {
	Model     string
	Text      string
	ImageURL  string // data URL или http(s) URL; пусто — только текст
	MaxTokens int64
}

// ImageRequest — запрос генерации изображений.
type ImageRequest struct {
	Model   string
	Prompt  string
	Size    string
	Quality string
	Count   int64
}

// GeneratedImage — один результат генерации; заполнено URL или B64JSON.
type GeneratedImage struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Caption       string `json:"caption"`
}

// Source возвращает то, что можно подставить в <img src>.
func (g GeneratedImage) Source() string {
	if g.URL != "" {
		return g.URL
	}
	if g.B64JSON != "" {
		return "data:image/png;base64," + g.B64JSON
	}
	return ""
}

// ResponseShapeError — в ответе провайдера нет ожидаемого поля. Raw — сырой JSON для диагностики.
type ResponseShapeError struct {
	Field string
	Raw   string
}

func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("unexpected response shape: missing %s", e.Field)
}

// IsResponseShape проверяет, что ошибка — несоответствие формы ответа.
func IsResponseShape(err error) (*ResponseShapeError, bool) {
	var se *ResponseShapeError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
