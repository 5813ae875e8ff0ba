package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool   `env:"DEBUG_MODE"` //Режим дебага
	BindAddr  string `env:"BIND_ADDR"`  // Адрес HTTP-сервера, напр. 127.0.0.1:8501

	// OpenAI
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"` // Базовый URL API; пусто — адрес по умолчанию из SDK
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"` // Таймаут одного запроса к провайдеру (включая стрим)
	StubProvider   bool          `env:"STUB_PROVIDER"`   // Вместо OpenAI отвечает заглушка (для отладки UI)
	DefaultModel   string        `env:"DEFAULT_MODEL"`   // Модель чата по умолчанию, если есть в каталоге

	// Vision / Images
	VisionModels    []string `env:"VISION_MODELS" envSeparator:";"` // Модели для анализа изображений, первая — по умолчанию
	VisionMaxTokens int      `env:"VISION_MAX_TOKENS"`              // Лимит токенов ответа при анализе
	VisionPrompt    string   `env:"VISION_PROMPT"`                  // Промпт анализа по умолчанию
	ImageModels     []string `env:"IMAGE_MODELS" envSeparator:";"`  // Модели генерации изображений, первая — по умолчанию
	ImagePrompt     string   `env:"IMAGE_PROMPT"`                   // Промпт генерации по умолчанию
	MaxUploadBytes  int64    `env:"MAX_UPLOAD_BYTES"`               // Максимальный размер загружаемого файла

	// Сессии
	SessionTTL           time.Duration `env:"SESSION_TTL"`            // Сессия без активности дольше TTL удаляется
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL"` // Периодичность очистки сессий
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:            false,
		BindAddr:             "127.0.0.1:8501",
		RequestTimeout:       2 * time.Minute,
		DefaultModel:         "gpt-3.5-turbo",
		VisionModels:         []string{"gpt-4-vision-preview", "gpt-4-1106-vision-preview"},
		VisionMaxTokens:      300,
		VisionPrompt:         "What's is this resource?",
		ImageModels:          []string{"dall-e-3", "dall-e-2"},
		ImagePrompt:          "a white siamese cat",
		MaxUploadBytes:       20 << 20,
		SessionTTL:           2 * time.Hour,
		SessionSweepInterval: time.Minute,
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	cfg, err := Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load собирает конфигурацию: дефолты, затем .env и окружение, затем флаги из args.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага (подробные логи)")
	fs.StringVar(&cfg.BindAddr, "bind-addr", cfg.BindAddr, "адрес HTTP-сервера (напр. 127.0.0.1:8501)")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", cfg.OpenAIBaseURL, "базовый URL OpenAI API (пусто — по умолчанию)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "таймаут запроса к провайдеру, напр. 2m")
	fs.BoolVar(&cfg.StubProvider, "stub-provider", cfg.StubProvider, "использовать заглушку вместо OpenAI")
	fs.StringVar(&cfg.DefaultModel, "default-model", cfg.DefaultModel, "модель чата по умолчанию")
	// Списки моделей принимаем одной строкой, разделённой ';'
	visionModelsFlag := strings.Join(cfg.VisionModels, ";")
	fs.StringVar(&visionModelsFlag, "vision-models", visionModelsFlag, "модели анализа изображений, разделённые ';'")
	imageModelsFlag := strings.Join(cfg.ImageModels, ";")
	fs.StringVar(&imageModelsFlag, "image-models", imageModelsFlag, "модели генерации изображений, разделённые ';'")
	fs.IntVar(&cfg.VisionMaxTokens, "vision-max-tokens", cfg.VisionMaxTokens, "лимит токенов ответа при анализе изображения")
	fs.StringVar(&cfg.VisionPrompt, "vision-prompt", cfg.VisionPrompt, "промпт анализа по умолчанию")
	fs.StringVar(&cfg.ImagePrompt, "image-prompt", cfg.ImagePrompt, "промпт генерации по умолчанию")
	fs.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "максимальный размер загружаемого файла, байт")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "время жизни неактивной сессии, напр. 2h")
	fs.DurationVar(&cfg.SessionSweepInterval, "session-sweep-interval", cfg.SessionSweepInterval, "периодичность очистки сессий")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.VisionModels = parseListFlag(visionModelsFlag, Defaults().VisionModels)
	cfg.ImageModels = parseListFlag(imageModelsFlag, Defaults().ImageModels)
	if cfg.VisionMaxTokens <= 0 {
		cfg.VisionMaxTokens = Defaults().VisionMaxTokens
	}
	return cfg, nil
}

// parseListFlag разбирает значение флага со списком, разделённым ';'
func parseListFlag(v string, def []string) []string {
	// Пустая строка → дефолт
	if v == "" {
		return def
	}
	parts := strings.Split(v, ";")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}
