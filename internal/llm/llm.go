package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-weekly-planner/internal/shared"
)

// Finish reasons reported by the generation service.
const (
	FinishReasonStop       = "STOP"
	FinishReasonMaxTokens  = "MAX_TOKENS"
	FinishReasonSafety     = "SAFETY"
	FinishReasonRecitation = "RECITATION"
	FinishReasonOther      = "OTHER"
)

// ErrRateLimited is returned when the service answers with HTTP 429.
// Callers should stop issuing requests and ask the user to wait.
var ErrRateLimited = errors.New("generation service rate limit exceeded")

// StatusError is a non-2xx response from the generation service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation service error: status=%d body=%s", e.StatusCode, e.Body)
}

// GenerationConfig carries the sampling parameters of one request.
type GenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"topP"`
	TopK            int     `json:"topK"`
}

// GenerationRequest is a single prompt sent to the generation service.
type GenerationRequest struct {
	Model  string
	Prompt string
	Config GenerationConfig
}

// Part is a fragment of candidate content.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content holds the parts of a candidate.
type Content struct {
	Parts []Part `json:"parts"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

// UsageMetadata reports token accounting for a request.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount,omitempty"`
}

// PromptFeedback is set when the prompt itself was rejected.
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// GenerationResponse mirrors the generateContent response body.
type GenerationResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// Text concatenates the text parts of the first candidate.
func (r *GenerationResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// FinishReason returns the finish reason of the first candidate, if any.
func (r *GenerationResponse) FinishReason() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].FinishReason
}

// BlockReason returns the prompt block reason, if any.
func (r *GenerationResponse) BlockReason() string {
	if r == nil || r.PromptFeedback == nil {
		return ""
	}
	return r.PromptFeedback.BlockReason
}

// Usage converts the usage metadata into shared.TokenUsage.
func (r *GenerationResponse) Usage(model string) shared.TokenUsage {
	u := shared.TokenUsage{Model: model}
	if r == nil || r.UsageMetadata == nil {
		return u
	}
	u.PromptTokens = r.UsageMetadata.PromptTokenCount
	u.CompletionTokens = r.UsageMetadata.CandidatesTokenCount
	u.ThoughtsTokens = r.UsageMetadata.ThoughtsTokenCount
	u.TotalTokens = r.UsageMetadata.TotalTokenCount
	return u
}

// Generator sends one prompt to a text generation model.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// GeneratorCloser is a Generator holding resources that must be released.
type GeneratorCloser interface {
	Generator
	Closer
}
