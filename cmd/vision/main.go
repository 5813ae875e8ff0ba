package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"SkillChat/internal/ai"
	"SkillChat/internal/app/session"
	"SkillChat/internal/config"
	"SkillChat/internal/service/catalog"

	"go.uber.org/zap"
)

// Разовый анализ файла (или генерация картинок) из командной строки через те же сессии, что и веб.
func main() {
	filePath := flag.String("file", "", "файл для анализа (jpg, jpeg, png, pdf, docx)")
	prompt := flag.String("prompt", "", "промпт; по умолчанию — из конфигурации")
	model := flag.String("model", "", "модель; по умолчанию — первая из списка")
	generate := flag.Bool("generate", false, "сгенерировать изображения по промпту вместо анализа")
	count := flag.Int64("n", 1, "количество изображений при генерации")

	cfg := config.NewConfig()
	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	factory := ai.NewFactory(ai.Options{BaseURL: cfg.OpenAIBaseURL, Stub: cfg.StubProvider}, sugar)
	sess := session.NewRegistry(session.Options{
		Catalog:         catalog.Default(),
		PreferredModel:  cfg.DefaultModel,
		VisionModels:    cfg.VisionModels,
		VisionMaxTokens: int64(cfg.VisionMaxTokens),
		ImageModels:     cfg.ImageModels,
		Timeout:         cfg.RequestTimeout,
	}, factory, sugar).Create()

	// ключ только из окружения, в конфиг и логи он не попадает
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" && cfg.StubProvider {
		key = ai.KeyPrefix + "stub"
	}
	if err := sess.SetCredential(key); err != nil {
		sugar.Errorw("Please enter your OpenAI API key!", "env", "OPENAI_API_KEY")
		os.Exit(1)
	}

	if *generate {
		p := *prompt
		if p == "" {
			p = cfg.ImagePrompt
		}
		imgs, err := sess.Generate(ctx, session.GenerateInput{Model: *model, Prompt: p, Count: *count})
		if err != nil {
			sugar.Errorw("generation failed", "error", err)
			os.Exit(1)
		}
		for _, img := range imgs {
			fmt.Printf("%s: %s\n", img.Caption, img.Source())
		}
		return
	}

	if *filePath == "" {
		sugar.Errorw("flag -file is required")
		os.Exit(2)
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		sugar.Errorw("failed to read file", "path", *filePath, "error", err)
		os.Exit(1)
	}
	p := *prompt
	if p == "" {
		p = cfg.VisionPrompt
	}
	resp, err := sess.Analyze(ctx, session.AnalyzeInput{
		Model:       *model,
		Prompt:      p,
		FileName:    filepath.Base(*filePath),
		ContentType: mime.TypeByExtension(filepath.Ext(*filePath)),
		Data:        data,
	})
	if err != nil {
		if se, ok := ai.IsResponseShape(err); ok {
			sugar.Errorw("unexpected response", "raw", se.Raw)
		}
		sugar.Errorw("analysis failed", "error", err)
		os.Exit(1)
	}

	fmt.Println(resp)
}
