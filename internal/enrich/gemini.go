package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Request is one model call.
type Request struct {
	SystemInstruction string
	Prompt            string
}

// Response holds the text of every returned candidate, in order.
type Response struct {
	Candidates []string
}

// Model is a generative backend that answers with JSON text.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// GeminiConfig holds generation settings for GeminiModel.
type GeminiConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	SafetyThreshold string // none | low | medium | high
}

// GeminiModel calls the Gemini API in JSON response mode.
type GeminiModel struct {
	client *genai.Client
	cfg    GeminiConfig
}

var _ Model = (*GeminiModel)(nil)

func NewGeminiModel(ctx context.Context, apiKey string, cfg GeminiConfig) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}
	return &GeminiModel{client: client, cfg: cfg}, nil
}

func (g *GeminiModel) Name() string {
	return g.cfg.Model
}

func (g *GeminiModel) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiModel) Generate(ctx context.Context, req Request) (*Response, error) {
	model := g.client.GenerativeModel(g.cfg.Model)
	model.SetTemperature(g.cfg.Temperature)
	model.SetMaxOutputTokens(g.cfg.MaxOutputTokens)
	model.ResponseMIMEType = "application/json"
	model.SafetySettings = safetySettings(g.cfg.SafetyThreshold)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.SystemInstruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, err
	}
	return &Response{Candidates: candidateTexts(resp)}, nil
}

// candidateTexts joins the text parts of each candidate. Candidates without
// content are kept as empty strings so callers can tell "no candidates" from "no text".
func candidateTexts(resp *genai.GenerateContentResponse) []string {
	if resp == nil {
		return nil
	}
	out := make([]string, 0, len(resp.Candidates))
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			out = append(out, "")
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		out = append(out, b.String())
	}
	return out
}

func safetySettings(threshold string) []*genai.SafetySetting {
	t := genai.HarmBlockMediumAndAbove
	switch strings.ToLower(threshold) {
	case "none":
		t = genai.HarmBlockNone
	case "low":
		t = genai.HarmBlockLowAndAbove
	case "high":
		t = genai.HarmBlockOnlyHigh
	}

	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: t})
	}
	return settings
}
