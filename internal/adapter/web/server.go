package web

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"SkillChat/internal/app/session"
	"SkillChat/internal/service/catalog"
	"SkillChat/internal/service/render"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const sessionCookie = "skillchat_session"

// Options — настройки HTTP-поверхности.
type Options struct {
	BindAddr       string
	MaxUploadBytes int64
	RequestTimeout time.Duration // запас для WriteTimeout обычных запросов
	VisionModels   []string
	ImageModels    []string
	VisionPrompt   string
	ImagePrompt    string
}

// Server отдаёт страницы чата и vision, JSON API и WebSocket для стриминга ответов.
type Server struct {
	opts     Options
	registry *session.Registry
	catalog  *catalog.Catalog
	md       *render.Markdown
	pages    map[string]*pageTemplate
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger

	srv     *http.Server
	running atomic.Bool
}

func NewServer(opts Options, registry *session.Registry, cat *catalog.Catalog, logger *zap.SugaredLogger) (*Server, error) {
	if opts.BindAddr == "" {
		opts.BindAddr = "127.0.0.1:8501"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	pages, err := loadPages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		opts:     opts,
		registry: registry,
		catalog:  cat,
		md:       render.NewMarkdown(),
		pages:    pages,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleChatPage)
	mux.HandleFunc("GET /vision", s.handleVisionPage)

	mux.HandleFunc("POST /api/credential", s.handleCredential)
	mux.HandleFunc("GET /api/params", s.handleParamsGet)
	mux.HandleFunc("POST /api/params", s.handleParamsSet)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /ws/chat", s.handleChatWS)

	mux.HandleFunc("POST /api/vision/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/vision/generate", s.handleGenerate)

	// Стрим чата идёт по WebSocket и WriteTimeout не затрагивает; таймаут нужен для vision-запросов.
	var writeTimeout time.Duration
	if opts.RequestTimeout > 0 {
		writeTimeout = opts.RequestTimeout + 15*time.Second
	}
	s.srv = &http.Server{
		Addr:              opts.BindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler — корневой обработчик (для тестов и встраивания).
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		s.logger.Infow("HTTP-сервер запущен", "addr", "http://"+s.srv.Addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			s.logger.Errorw("HTTP-сервер остановлен с ошибкой", "error", err)
		} else {
			s.logger.Infow("HTTP-сервер остановлен")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("http server shutdown timeout"))
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		return s.srv.Close()
	}
	return nil
}

func (s *Server) Addr() string { return s.opts.BindAddr }

// lookup находит сессию по cookie или открывает новую.
func (s *Server) lookup(r *http.Request) (*session.Session, bool) {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	return s.registry.GetOrCreate(id)
}

// session — lookup с выставлением cookie для новой сессии.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, created := s.lookup(r)
	if created {
		http.SetCookie(w, newCookie(sess.ID))
	}
	return sess
}

func newCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
