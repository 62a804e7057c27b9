package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ai-weekly-planner/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// geminiClient is a client for the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (GeneratorCloser, error) {
	return newGeminiClient(ctx, cfg.GeminiModel, option.WithAPIKey(cfg.GeminiAPIKey))
}

func newGeminiClient(ctx context.Context, model string, opts ...option.ClientOption) (*geminiClient, error) {
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiClient{client: client, model: model}, nil
}

// Generate sends the prompt to Gemini with the request's sampling parameters.
// Blocked prompts and safety stops come back as responses, not errors, so the
// caller can classify them uniformly.
func (c *geminiClient) Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	name := req.Model
	if name == "" {
		name = c.model
	}

	// GenerativeModel carries its config, so build one per request.
	model := c.client.GenerativeModel(name)
	model.SetMaxOutputTokens(int32(req.Config.MaxOutputTokens))
	model.SetTemperature(req.Config.Temperature)
	if req.Config.TopP > 0 {
		model.SetTopP(req.Config.TopP)
	}
	if req.Config.TopK > 0 {
		model.SetTopK(int32(req.Config.TopK))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return fromBlockedError(blocked), nil
		}
		return nil, apiError(err)
	}

	return toGenerationResponse(resp), nil
}

// Close closes the underlying Gemini client.
func (c *geminiClient) Close() error {
	return c.client.Close()
}

// apiError maps HTTP failures to the same errors the proxy client returns, so
// rate limits stop a run and server errors are retried on either backend.
func apiError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("failed to generate content: %w", err)
	}
	if gerr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, gerr.Message)
	}
	return &StatusError{StatusCode: gerr.Code, Body: gerr.Message}
}

func toGenerationResponse(resp *genai.GenerateContentResponse) *GenerationResponse {
	out := &GenerationResponse{}
	if resp == nil {
		return out
	}

	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		out.Candidates = append(out.Candidates, toCandidate(cand))
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		out.PromptFeedback = &PromptFeedback{BlockReason: blockReasonName(resp.PromptFeedback.BlockReason)}
	}

	if resp.UsageMetadata != nil {
		out.UsageMetadata = &UsageMetadata{
			PromptTokenCount:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokenCount: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokenCount:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out
}

func toCandidate(cand *genai.Candidate) Candidate {
	c := Candidate{FinishReason: finishReasonName(cand.FinishReason)}
	if cand.Content == nil {
		return c
	}
	content := &Content{}
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content.Parts = append(content.Parts, Part{Text: string(text)})
		}
	}
	c.Content = content
	return c
}

func fromBlockedError(blocked *genai.BlockedError) *GenerationResponse {
	out := &GenerationResponse{}
	if blocked.PromptFeedback != nil {
		out.PromptFeedback = &PromptFeedback{BlockReason: blockReasonName(blocked.PromptFeedback.BlockReason)}
	}
	if blocked.Candidate != nil {
		out.Candidates = []Candidate{toCandidate(blocked.Candidate)}
	}
	return out
}

func finishReasonName(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonUnspecified:
		return ""
	case genai.FinishReasonStop:
		return FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return FinishReasonMaxTokens
	case genai.FinishReasonSafety:
		return FinishReasonSafety
	case genai.FinishReasonRecitation:
		return FinishReasonRecitation
	default:
		return FinishReasonOther
	}
}

func blockReasonName(r genai.BlockReason) string {
	switch r {
	case genai.BlockReasonUnspecified:
		return ""
	case genai.BlockReasonSafety:
		return "SAFETY"
	default:
		return "OTHER"
	}
}
