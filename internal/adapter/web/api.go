package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"SkillChat/internal/ai"
	"SkillChat/internal/app/session"
	"SkillChat/internal/service/catalog"
	"SkillChat/internal/service/conversation"
	"SkillChat/internal/service/params"
)

// Тексты предупреждений интерфейса.
const (
	warnNoKey       = "Please enter your OpenAI API key!"
	warnEmptyInput  = "Please enter a message."
	warnBusy        = "Please wait until the current request finishes."
	errPrefix       = "An unexpected error occurred: "
	maxMultipartMem = 8 << 20
)

type renderedMessage struct {
	Role    conversation.Role `json:"role"`
	Content string            `json:"content"`
	HTML    template.HTML     `json:"html"`
}

type catalogRow struct {
	catalog.Entry
	ContextText string `json:"context_window_text"`
}

type imageView struct {
	Caption       string `json:"caption"`
	Src           string `json:"src"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.SetCredential(r.PostFormValue("api_key")); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "enabled": false, "warning": warnNoKey})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "enabled": true, "warning": ""})
}

func (s *Server) handleParamsGet(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "params": sess.Params()})
}

func (s *Server) handleParamsSet(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	var u params.Update
	if err := readJSON(r, &u); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	got, err := sess.UpdateParams(u)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error(), "params": got})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "params": got})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"models":  s.catalogRows(),
		"default": s.catalog.DefaultModel(catalog.PreferredDefault),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "messages": s.renderMessages(sess.Messages())})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	cleared, err := sess.Clear()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cleared": cleared})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		status := http.StatusBadRequest
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]any{"ok": false, "error": fmt.Sprintf("invalid upload: %v", err)})
		return
	}
	in := session.AnalyzeInput{Model: r.FormValue("model"), Prompt: r.FormValue("prompt")}
	f, hdr, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// пустой файл отклонит сессия с понятным предупреждением
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	default:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		in.FileName, in.ContentType, in.Data = hdr.Filename, hdr.Header.Get("Content-Type"), data
	}

	text, err := sess.Analyze(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "text": text, "html": s.md.HTML(text)})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	var in session.GenerateInput
	if err := readJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	imgs, err := sess.Generate(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]imageView, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, imageView{Caption: img.Caption, Src: img.Source(), RevisedPrompt: img.RevisedPrompt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "images": out})
}

// errorStatus сопоставляет ошибку сессии с HTTP-статусом и текстом для пользователя.
func errorStatus(err error) (int, string) {
	if _, ok := ai.IsResponseShape(err); ok {
		return http.StatusUnprocessableEntity, errPrefix + err.Error()
	}
	switch {
	case errors.Is(err, session.ErrNoCredential):
		return http.StatusForbidden, warnNoKey
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, warnBusy
	case errors.Is(err, session.ErrEmptyInput):
		return http.StatusBadRequest, warnEmptyInput
	case errors.Is(err, session.ErrMissingInput),
		errors.Is(err, session.ErrInvalidOption),
		errors.Is(err, catalog.ErrUnknownModel):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrDispatch):
		return http.StatusBadGateway, errPrefix + err.Error()
	}
	return http.StatusInternalServerError, errPrefix + err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	body := map[string]any{"ok": false, "error": msg}
	if se, ok := ai.IsResponseShape(err); ok {
		body["raw"] = se.Raw
	}
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("Запрос завершился ошибкой", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func (s *Server) renderMessages(msgs []conversation.Message) []renderedMessage {
	out := make([]renderedMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, renderedMessage{Role: m.Role, Content: m.Content, HTML: s.md.HTML(m.Content)})
	}
	return out
}

func (s *Server) catalogRows() []catalogRow {
	entries := s.catalog.Entries()
	rows := make([]catalogRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, catalogRow{Entry: e, ContextText: e.ContextWindowText()})
	}
	return rows
}

func readJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()

	const maxBytes = 1_000_000
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return fmt.Errorf("failed reading request body: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	b, err := json.Marshal(v)
	if err != nil {
		_, _ = w.Write([]byte(`{"ok":false,"error":"failed to marshal json"}`))
		return
	}
	_, _ = w.Write(append(b, '\n'))
}
