package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collateral-evidence/internal/usecase/verification"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var ErrEmptyResponse = errors.New("empty response from gemini")

// Gemini calls the generateContent endpoint with the prompt and file references
// of a verification request.
type Gemini struct {
	client *resty.Client
	model  string
}

func NewGemini(apiKey, model, baseURL string, timeout time.Duration) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", apiKey)
	return &Gemini{client: client, model: normalizeModel(model)}, nil
}

func (g *Gemini) Generate(ctx context.Context, req verification.Request) (string, error) {
	var (
		out     generateResponse
		errResp errorResponse
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(newGenerateRequest(req)).
		SetResult(&out).
		SetError(&errResp).
		Post("/models/" + g.model + ":generateContent")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("gemini api error: %s", resp.Status())
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, out.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	return strings.TrimPrefix(model, "models/")
}

func newGenerateRequest(req verification.Request) generateRequest {
	parts := make([]part, 0, len(req.Files)+1)
	parts = append(parts, part{Text: req.Prompt})
	for _, f := range req.Files {
		parts = append(parts, part{FileData: &fileData{MIMEType: f.MIMEType, FileURI: f.URI}})
	}
	return generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{ResponseMIMEType: "application/json"},
	}
}

type fileData struct {
	MIMEType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
