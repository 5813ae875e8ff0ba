package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"SkillChat/internal/service/conversation"
	"SkillChat/internal/service/stream"
)

// StubClient заглушка, которая не делает реальных запросов
type StubClient struct{}

var _ Provider = (*StubClient)(nil)

func NewStubClient() *StubClient { return &StubClient{} }

// StreamChat отвечает по словам эхом последней реплики пользователя.
func (c *StubClient) StreamChat(_ context.Context, req ChatRequest) (FragmentStream, error) {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == conversation.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	text := fmt.Sprintf("запрос получен (%s): %s", req.Params.Model, last)
	words := strings.SplitAfter(text, " ")
	return &stream.SliceSource{Fragments: words}, nil
}

func (c *StubClient) Analyze(_ context.Context, req VisionRequest) (string, error) {
	return fmt.Sprintf("запрос получен (%s), изображение: %t", req.Model, req.ImageURL != ""), nil
}

const stubSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="256" height="256"><rect width="256" height="256" fill="#ddd"/><text x="128" y="136" font-size="48" text-anchor="middle">%d</text></svg>`

func (c *StubClient) Generate(_ context.Context, req ImageRequest) ([]GeneratedImage, error) {
	out := make([]GeneratedImage, 0, req.Count)
	for i := range req.Count {
		svg := fmt.Sprintf(stubSVG, i+1)
		out = append(out, GeneratedImage{
			URL: "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
		})
	}
	return out, nil
}
