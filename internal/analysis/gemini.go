package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the vision model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultPrompt is the instruction sent with every report image.
const DefaultPrompt = "Analyze this medical report or image. Summarize abnormalities and give simple health insights."

// VisionModel produces text from an image and a prompt.
type VisionModel interface {
	Analyze(ctx context.Context, img InlineImage, prompt string) (string, error)
}

// GeminiVision implements VisionModel with Google's Gemini API.
type GeminiVision struct {
	client  *genai.Client
	modelID string
}

// NewGeminiVision creates a Gemini client for modelID.
func NewGeminiVision(ctx context.Context, apiKey, modelID string) (*GeminiVision, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("analysis: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("analysis: failed to create gemini client: %w", err)
	}
	return &GeminiVision{client: client, modelID: modelID}, nil
}

// Analyze sends the image and prompt in a single request and returns the
// concatenated text parts of the first candidate.
func (g *GeminiVision) Analyze(ctx context.Context, img InlineImage, prompt string) (string, error) {
	raw, err := img.Bytes()
	if err != nil {
		return "", fmt.Errorf("analysis: decode inline image: %w", err)
	}
	model := g.client.GenerativeModel(g.modelID)
	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: img.MIMEType, Data: raw},
		genai.Text(prompt),
	)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// Close releases the client.
func (g *GeminiVision) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range c.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
