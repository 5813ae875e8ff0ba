package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"SkillChat/internal/app/session"
	"SkillChat/internal/service/catalog"
	"SkillChat/internal/service/params"
)

//go:embed templates/*.html
var templatesFS embed.FS

type pageTemplate struct {
	tmpl *template.Template
}

// loadPages собирает каждую страницу из общего layout и своего файла.
func loadPages() (map[string]*pageTemplate, error) {
	pages := make(map[string]*pageTemplate)
	for _, name := range []string{"chat", "vision"} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = &pageTemplate{tmpl: t}
	}
	return pages, nil
}

// limits — границы ползунков панели параметров.
type limits struct {
	MinTemperature, MaxTemperature float64
	MinMaxTokens, MaxMaxTokens     int
	MinTopP, MaxTopP               float64
	MinPenalty, MaxPenalty         float64
	MinImages, MaxImages           int
}

var panelLimits = limits{
	MinTemperature: params.MinTemperature, MaxTemperature: params.MaxTemperature,
	MinMaxTokens: params.MinMaxTokens, MaxMaxTokens: params.MaxMaxTokens,
	MinTopP: params.MinTopP, MaxTopP: params.MaxTopP,
	MinPenalty: params.MinPenalty, MaxPenalty: params.MaxPenalty,
	MinImages: session.MinImages, MaxImages: session.MaxImages,
}

type pageData struct {
	Title    string
	Active   string
	Enabled  bool
	Warning  string
	Params   params.Generation
	Models   []catalog.Entry
	Policy   template.HTML
	Messages []renderedMessage
	Limits   limits

	VisionModels   []string
	ImageModels    []string
	ImageSizes     []string
	ImageQualities []string
	VisionPrompt   string
	ImagePrompt    string
}

func (s *Server) pageData(sess *session.Session, title, active string) pageData {
	d := pageData{
		Title:          title,
		Active:         active,
		Enabled:        sess.Enabled(),
		Params:         sess.Params(),
		Models:         s.catalog.Entries(),
		Policy:         s.md.HTML(catalog.PolicyMarkdown()),
		Limits:         panelLimits,
		VisionModels:   s.opts.VisionModels,
		ImageModels:    s.opts.ImageModels,
		ImageSizes:     session.ImageSizes,
		ImageQualities: session.ImageQualities,
		VisionPrompt:   s.opts.VisionPrompt,
		ImagePrompt:    s.opts.ImagePrompt,
	}
	if !d.Enabled {
		d.Warning = warnNoKey
	}
	return d
}

func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	d := s.pageData(sess, "SkillChat", "chat")
	d.Messages = s.renderMessages(sess.Messages())
	s.renderPage(w, "chat", d)
}

func (s *Server) handleVisionPage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.renderPage(w, "vision", s.pageData(sess, "SkillChat Vision", "vision"))
}

func (s *Server) renderPage(w http.ResponseWriter, name string, d pageData) {
	var buf bytes.Buffer
	if err := s.pages[name].tmpl.ExecuteTemplate(&buf, "layout", d); err != nil {
		s.logger.Errorw("Не удалось отрисовать страницу", "page", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
