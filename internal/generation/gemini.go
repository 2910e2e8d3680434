package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiGenerator generates proposals through the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator constructs a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("generation: gemini api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("generation: create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate renders the prompt and asks Gemini for the proposal body.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return Response{}, err
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		if msg, ok := quotaMessage(err); ok {
			log.WithField("model", g.model).Warn("generation: gemini quota exhausted")
			return Response{Success: false, Error: msg}, nil
		}
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	usage := tokenUsage(resp.UsageMetadata)
	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return Response{Success: false, Error: "the generation service returned no content", Usage: usage}, nil
	}
	return Response{Success: true, Content: content, Usage: usage}, nil
}

func tokenUsage(meta *genai.GenerateContentResponseUsageMetadata) TokenUsage {
	if meta == nil {
		return TokenUsage{}
	}
	return TokenUsage{
		InputTokens:  int64(meta.PromptTokenCount),
		OutputTokens: int64(meta.CandidatesTokenCount),
		TotalTokens:  int64(meta.TotalTokenCount),
	}
}

// quotaMessage extracts a provider quota rejection so it is reported as a
// limit condition rather than a transport failure.
func quotaMessage(err error) (string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return quotaText(apiErr.Message), true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code == http.StatusTooManyRequests {
		return quotaText(apiErrPtr.Message), true
	}
	return "", false
}

func quotaText(message string) string {
	message = strings.TrimSpace(message)
	if strings.Contains(strings.ToLower(message), "quota") {
		return message
	}
	return "generation quota exceeded"
}
