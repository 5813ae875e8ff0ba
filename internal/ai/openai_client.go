package ai

import (
	"context"
	"fmt"
	"time"

	"SkillChat/internal/service/conversation"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"go.uber.org/zap"
)

// OpenAIClient — реализация Provider поверх openai-go. Повторы запросов отключены.
type OpenAIClient struct {
	client *openai.Client
	logger *zap.SugaredLogger
}

var _ Provider = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey string, opts Options, logger *zap.SugaredLogger) *OpenAIClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	c := openai.NewClient(reqOpts...)
	return &OpenAIClient{client: &c, logger: logger}
}

// ChatParams собирает параметры запроса: сообщения в исходном порядке, все пять параметров без изменений.
func ChatParams(req ChatRequest) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case conversation.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case conversation.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unsupported role: %q", m.Role)
		}
	}
	p := req.Params
	return openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(p.Model),
		Messages:         msgs,
		Temperature:      openai.Float(p.Temperature),
		MaxTokens:        openai.Int(p.MaxTokens),
		TopP:             openai.Float(p.TopP),
		FrequencyPenalty: openai.Float(p.FrequencyPenalty),
		PresencePenalty:  openai.Float(p.PresencePenalty),
	}, nil
}

func (c *OpenAIClient) StreamChat(ctx context.Context, req ChatRequest) (FragmentStream, error) {
	params, err := ChatParams(req)
	if err != nil {
		return nil, err
	}

	c.logger.Infow("Запрос в OpenAI (stream)...", "model", req.Params.Model, "messages", len(req.Messages))
	s := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := s.Err(); err != nil {
		_ = s.Close()
		c.logger.Errorw("Ошибка ответа OpenAI", "error", err)
		return nil, err
	}
	return &chatStream{s: s, logger: c.logger, started: time.Now()}, nil
}

// chatStream выдаёт только непустые дельты контента первого варианта ответа.
type chatStream struct {
	s       *ssestream.Stream[openai.ChatCompletionChunk]
	cur     string
	logger  *zap.SugaredLogger
	started time.Time
}

func (c *chatStream) Next() bool {
	for c.s.Next() {
		chunk := c.s.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			c.cur = delta
			return true
		}
	}
	return false
}

func (c *chatStream) Current() string { return c.cur }

func (c *chatStream) Err() error { return c.s.Err() }

func (c *chatStream) Close() error {
	c.logger.Infow("Стрим OpenAI закрыт", "duration", time.Since(c.started).String())
	return c.s.Close()
}

func (c *OpenAIClient) Analyze(ctx context.Context, req VisionRequest) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Text),
	}
	if req.ImageURL != "" {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: req.ImageURL,
		}))
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	start := time.Now()
	c.logger.Infow("Запрос анализа в OpenAI...", "model", req.Model, "image", req.ImageURL != "")
	completion, err := c.client.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		c.logger.Errorw("Ошибка ответа OpenAI", "duration", dur.String(), "error", err)
		return "", err
	}
	c.logger.Infow("Ответ OpenAI получен", "duration", dur.String())

	if len(completion.Choices) == 0 {
		return "", &ResponseShapeError{Field: "choices[0]", Raw: completion.RawJSON()}
	}
	msg := completion.Choices[0].Message
	if !msg.JSON.Content.Valid() {
		return "", &ResponseShapeError{Field: "choices[0].message.content", Raw: completion.RawJSON()}
	}
	return msg.Content, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req ImageRequest) ([]GeneratedImage, error) {
	params := openai.ImageGenerateParams{
		Prompt:  req.Prompt,
		Model:   openai.ImageModel(req.Model),
		N:       openai.Int(req.Count),
		Size:    openai.ImageGenerateParamsSize(req.Size),
		Quality: openai.ImageGenerateParamsQuality(req.Quality),
	}

	start := time.Now()
	c.logger.Infow("Запрос генерации изображений в OpenAI...", "model", req.Model, "n", req.Count, "size", req.Size)
	resp, err := c.client.Images.Generate(ctx, params)
	dur := time.Since(start)
	if err != nil {
		c.logger.Errorw("Ошибка ответа OpenAI", "duration", dur.String(), "error", err)
		return nil, err
	}
	c.logger.Infow("Изображения получены", "duration", dur.String(), "count", len(resp.Data))

	if len(resp.Data) == 0 {
		return nil, &ResponseShapeError{Field: "data", Raw: resp.RawJSON()}
	}
	out := make([]GeneratedImage, 0, len(resp.Data))
	for _, img := range resp.Data {
		out = append(out, GeneratedImage{URL: img.URL, B64JSON: img.B64JSON, RevisedPrompt: img.RevisedPrompt})
	}
	return out, nil
}
