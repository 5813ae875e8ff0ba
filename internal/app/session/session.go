package session

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"SkillChat/internal/ai"
	"SkillChat/internal/service/catalog"
	"SkillChat/internal/service/conversation"
	"SkillChat/internal/service/image"
	"SkillChat/internal/service/params"
	"SkillChat/internal/service/stream"

	"go.uber.org/zap"
)

var (
	ErrNoCredential  = errors.New("no valid api key entered")
	ErrEmptyInput    = errors.New("empty input")
	ErrMissingInput  = errors.New("missing required input")
	ErrInvalidOption = errors.New("invalid option")
	ErrBusy          = errors.New("another action is in progress")
	// ErrDispatch оборачивает любые сбои запроса или стрима.
	ErrDispatch = errors.New("request failed")
)

// Варианты генерации изображений.
var (
	ImageSizes     = []string{"1024x1024", "512x512", "256x256"}
	ImageQualities = []string{"standard", "hd"}
)

const (
	MinImages = 1
	MaxImages = 4
)

// Options — общие для всех сессий настройки.
type Options struct {
	Catalog         *catalog.Catalog
	PreferredModel  string
	VisionModels    []string
	VisionMaxTokens int64
	ImageModels     []string
	Timeout         time.Duration // ограничение на одно действие (запрос + стрим); 0 — без ограничения
}

// Hooks — колбэки отображения хода диалога.
type Hooks struct {
	OnUser     func(m conversation.Message) // реплика пользователя добавлена в журнал
	OnFragment func(partial string)          // пришёл очередной фрагмент; partial — весь буфер
}

// Session — контекст одной браузерной сессии: ворота ключа, панель параметров и журнал.
// Действия выполняются строго по одному; пересекающееся действие получает ErrBusy.
type Session struct {
	ID string

	opts      Options
	factory   ai.Factory
	processor *image.Processor
	logger    *zap.SugaredLogger
	now       func() time.Time

	mu         sync.Mutex
	provider   ai.Provider // nil — запросы запрещены
	keySet     bool
	keySum     [sha256.Size]byte // хэш последнего введённого ключа, чтобы не проверять его повторно
	panel      *params.Panel
	lastActive time.Time

	store *conversation.Store
	busy  atomic.Bool
}

func newSession(id string, opts Options, factory ai.Factory, logger *zap.SugaredLogger, now func() time.Time) *Session {
	return &Session{
		ID:         id,
		opts:       opts,
		factory:    factory,
		processor:  image.NewProcessor(),
		logger:     logger.With("session", id),
		now:        now,
		panel:      params.NewPanel(opts.Catalog, opts.PreferredModel),
		store:      conversation.New(),
		lastActive: now(),
	}
}

// SetCredential проверяет формат ключа и строит клиента. Повтор того же ключа ничего не меняет.
// При неверном формате клиент сбрасывается и все пути запросов становятся инертными.
func (s *Session) SetCredential(key string) error {
	sum := sha256.Sum256([]byte(key))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	if s.keySet && sum == s.keySum {
		if s.provider == nil {
			return ai.ErrInvalidCredential
		}
		return nil
	}
	s.keySet, s.keySum = true, sum
	p, err := ai.NewProviderFromKey(key, s.factory)
	if err != nil {
		s.provider = nil
		return err
	}
	s.provider = p
	s.logger.Infow("Ключ API принят, клиент создан")
	return nil
}

// Enabled — есть ли клиент, т.е. разрешены ли запросы.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider != nil
}

func (s *Session) client() ai.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	return s.provider
}

// Params возвращает текущие параметры генерации.
func (s *Session) Params() params.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel.Get()
}

// UpdateParams применяет частичное изменение панели и возвращает итоговые значения.
func (s *Session) UpdateParams(u params.Update) (params.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	err := s.panel.Apply(u)
	return s.panel.Get(), err
}

// Messages возвращает журнал диалога.
func (s *Session) Messages() []conversation.Message { return s.store.Messages() }

func (s *Session) Busy() bool { return s.busy.Load() }

// IdleFor — сколько прошло с последнего действия.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.lastActive)
}

func (s *Session) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) release() { s.busy.Store(false) }

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, s.opts.Timeout, errors.New("request timeout"))
}

// Submit — ход диалога: добавляет реплику пользователя, отправляет весь журнал и стримит ответ.
// В журнал попадает ровно одна итоговая реплика ассистента; при сбое — ни одной.
func (s *Session) Submit(ctx context.Context, text string, hooks Hooks) (conversation.Message, error) {
	if strings.TrimSpace(text) == "" {
		return conversation.Message{}, ErrEmptyInput
	}
	provider := s.client()
	if provider == nil {
		return conversation.Message{}, ErrNoCredential
	}
	if err := s.acquire(); err != nil {
		return conversation.Message{}, err
	}
	defer s.release()

	s.store.AppendUser(text)
	if hooks.OnUser != nil {
		hooks.OnUser(conversation.Message{Role: conversation.RoleUser, Content: text})
	}

	req := ai.ChatRequest{Messages: s.store.Messages(), Params: s.Params()}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	src, err := provider.StreamChat(ctx, req)
	if err != nil {
		s.logger.Errorw("Запрос не выполнен", "error", err)
		return conversation.Message{}, fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	defer src.Close()

	full, err := stream.Consume(src, hooks.OnFragment)
	if err != nil {
		s.logger.Errorw("Стрим прерван, частичный ответ отброшен", "error", err)
		return conversation.Message{}, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	s.store.AppendAssistant(full)
	s.logger.Infow("Ответ получен", "duration", time.Since(start).String(), "chars", len(full), "messages", s.store.Len())
	return conversation.Message{Role: conversation.RoleAssistant, Content: full}, nil
}

// Clear очищает журнал. Для пустого журнала — no-op (false, nil).
func (s *Session) Clear() (bool, error) {
	if err := s.acquire(); err != nil {
		return false, err
	}
	defer s.release()
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
	return s.store.Clear(), nil
}

// AnalyzeInput — загруженный файл и промпт для анализа.
type AnalyzeInput struct {
	Model       string
	Prompt      string
	FileName    string
	ContentType string
	Data        []byte
}

// Analyze — stateless-запрос анализа файла; журнал диалога не затрагивается.
func (s *Session) Analyze(ctx context.Context, in AnalyzeInput) (string, error) {
	provider := s.client()
	if provider == nil {
		return "", ErrNoCredential
	}
	if len(in.Data) == 0 {
		return "", fmt.Errorf("%w: no file uploaded", ErrMissingInput)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", ErrMissingInput)
	}
	model, err := pick(in.Model, s.opts.VisionModels)
	if err != nil {
		return "", err
	}
	req, err := s.visionRequest(model, in)
	if err != nil {
		return "", err
	}
	if err := s.acquire(); err != nil {
		return "", err
	}
	defer s.release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := provider.Analyze(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	return out, nil
}

// visionRequest: картинки уменьшаются и идут отдельной частью (data URL),
// прочие файлы кодируются в base64 и встраиваются в текст промпта.
func (s *Session) visionRequest(model string, in AnalyzeInput) (ai.VisionRequest, error) {
	req := ai.VisionRequest{Model: model, MaxTokens: s.opts.VisionMaxTokens}
	if image.IsImage(in.ContentType, in.FileName) {
		img, err := s.processor.Process(in.Data)
		if err != nil {
			return ai.VisionRequest{}, fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		req.Text = in.Prompt
		req.ImageURL = img.DataURL()
		return req, nil
	}
	content := base64.StdEncoding.EncodeToString(in.Data)
	req.Text = fmt.Sprintf("Considering the uploaded content: %s\n %s", content, in.Prompt)
	return req, nil
}

// GenerateInput — параметры генерации изображений.
type GenerateInput struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Count   int64  `json:"count"`
}

// Generate — stateless-генерация; каждая картинка подписывается порядковым номером.
func (s *Session) Generate(ctx context.Context, in GenerateInput) ([]ai.GeneratedImage, error) {
	provider := s.client()
	if provider == nil {
		return nil, ErrNoCredential
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrMissingInput)
	}
	model, err := pick(in.Model, s.opts.ImageModels)
	if err != nil {
		return nil, err
	}
	size, err := pick(in.Size, ImageSizes)
	if err != nil {
		return nil, err
	}
	quality, err := pick(in.Quality, ImageQualities)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	imgs, err := provider.Generate(ctx, ai.ImageRequest{
		Model:   model,
		Prompt:  in.Prompt,
		Size:    size,
		Quality: quality,
		Count:   min(max(in.Count, MinImages), MaxImages),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	for i := range imgs {
		imgs[i].Caption = fmt.Sprintf("Generated Image %d", i+1)
	}
	return imgs, nil
}

// pick возвращает v, если он из списка, первый элемент для пустого v, иначе ошибку.
func pick(v string, allowed []string) (string, error) {
	if v == "" {
		if len(allowed) == 0 {
			return "", fmt.Errorf("%w: no options configured", ErrInvalidOption)
		}
		return allowed[0], nil
	}
	if !slices.Contains(allowed, v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidOption, v)
	}
	return v, nil
}
