package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-weekly-planner/internal/llm"
)

var (
	// ErrEmptyResponse means the model returned no text without a block or
	// safety signal. Retry with different parameters.
	ErrEmptyResponse = errors.New("model returned no text")
	// ErrTruncated means generation stopped at the output token limit.
	// Retry with a smaller budget.
	ErrTruncated = errors.New("response truncated at max output tokens")
	// ErrBlocked is matched by every BlockedError.
	ErrBlocked = errors.New("blocked content")
	// ErrContentFiltered is matched by BlockedErrors caused by a safety or
	// recitation stop rather than a prompt block.
	ErrContentFiltered = errors.New("content filtered")
	// ErrNoJSON means no JSON object could be extracted from the text.
	ErrNoJSON = errors.New("no JSON object found in response")
	// ErrUnrecognizedShape means the JSON did not contain a list of days.
	ErrUnrecognizedShape = errors.New("response does not match a plan shape")
	// ErrNoItems means the JSON parsed but contained no usable recipe.
	ErrNoItems = errors.New("response contains no recipes")
)

// BlockedError reports a response the service refused to produce.
// It is never retried.
type BlockedError struct {
	BlockReason  string
	FinishReason string
}

func (e *BlockedError) Error() string {
	if e.BlockReason != "" {
		return fmt.Sprintf("blocked content: prompt blocked (%s)", e.BlockReason)
	}
	return fmt.Sprintf("blocked content: generation stopped (%s)", e.FinishReason)
}

func (e *BlockedError) Is(target error) bool {
	if target == ErrBlocked {
		return true
	}
	return target == ErrContentFiltered && e.BlockReason == ""
}

var nonRetryableFinishReasons = map[string]bool{
	llm.FinishReasonSafety:     true,
	llm.FinishReasonRecitation: true,
	"BLOCKLIST":                true,
	"PROHIBITED_CONTENT":       true,
	"SPII":                     true,
}

// ClassifyResponse extracts the text of a generation response and maps the
// service signals onto distinct errors: a prompt block or safety stop is a
// *BlockedError, a token limit stop is ErrTruncated. A response that simply
// has no text yields "" and a nil error; callers decide whether to retry.
func ClassifyResponse(resp *llm.GenerationResponse) (string, error) {
	if resp == nil {
		return "", nil
	}
	if reason := resp.BlockReason(); reason != "" {
		return "", &BlockedError{BlockReason: reason}
	}

	finish := resp.FinishReason()
	switch {
	case finish == llm.FinishReasonMaxTokens:
		return "", ErrTruncated
	case nonRetryableFinishReasons[finish]:
		return "", &BlockedError{FinishReason: finish}
	}

	return strings.TrimSpace(resp.Text()), nil
}

// ExtractJSON parses the first JSON value found in raw model text. Markdown
// fences are removed first; if the remainder is not valid JSON the first
// balanced object inside it is used.
func ExtractJSON(raw string) (any, bool) {
	text := stripFences(raw)
	if text == "" {
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}

	obj, ok := scanObject(text)
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return nil, false
	}
	return v, true
}

// shapeAdapter recognizes one accepted top-level layout and returns its days.
type shapeAdapter struct {
	name    string
	extract func(v any) ([]any, bool)
}

// planShapes lists the accepted layouts in the order they are tried.
var planShapes = []shapeAdapter{
	{"days", func(v any) ([]any, bool) { return arrayAt(v, "days") }},
	{"plan.days", func(v any) ([]any, bool) { return arrayAt(v, "plan", "days") }},
	{"weekPlan.days", func(v any) ([]any, bool) { return arrayAt(v, "weekPlan", "days") }},
	{"week.days", func(v any) ([]any, bool) { return arrayAt(v, "week", "days") }},
	{"array", func(v any) ([]any, bool) { arr, ok := v.([]any); return arr, ok }},
}

func arrayAt(v any, path ...string) ([]any, bool) {
	cur := v
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	arr, ok := cur.([]any)
	return arr, ok
}

// CoerceToPlanShape normalizes the accepted layouts into {"days": [...]}.
func CoerceToPlanShape(v any) (map[string]any, bool) {
	for _, shape := range planShapes {
		if days, ok := shape.extract(v); ok {
			return map[string]any{"days": days}, true
		}
	}
	return nil, false
}

// parsePlanText runs extraction and shape coercion on model text and decodes
// the resulting days.
func parsePlanText(text string) ([]dayDraft, error) {
	v, ok := ExtractJSON(text)
	if !ok {
		return nil, ErrNoJSON
	}
	return parsePlanValue(v)
}

func parsePlanValue(v any) ([]dayDraft, error) {
	shape, ok := CoerceToPlanShape(v)
	if !ok {
		// A single day object is accepted as a one-day plan.
		if m, isMap := v.(map[string]any); isMap && (m["meals"] != nil || m["day"] != nil) {
			shape = map[string]any{"days": []any{m}}
		} else {
			return nil, ErrUnrecognizedShape
		}
	}
	return decodeDays(shape)
}

// parseItemText decodes a single recipe. The recipe may be the top-level
// object, wrapped under "item" or "recipe", or the first item of a plan.
func parseItemText(text string) (Item, error) {
	v, ok := ExtractJSON(text)
	if !ok {
		return Item{}, ErrNoJSON
	}
	if m, isMap := v.(map[string]any); isMap {
		for _, key := range []string{"item", "recipe"} {
			if inner, ok := m[key].(map[string]any); ok {
				m = inner
				break
			}
		}
		if m["title"] != nil || (m["name"] != nil && m["meals"] == nil) {
			data, err := json.Marshal(m)
			if err != nil {
				return Item{}, ErrUnrecognizedShape
			}
			var raw rawItem
			if err := json.Unmarshal(data, &raw); err != nil {
				return Item{}, ErrUnrecognizedShape
			}
			if it, ok := raw.toItem(); ok {
				return it, nil
			}
			return Item{}, ErrNoItems
		}
	}

	drafts, err := parsePlanValue(v)
	if err != nil {
		return Item{}, err
	}
	for _, d := range drafts {
		for _, slot := range d.slots {
			if len(slot) > 0 {
				return slot[0], nil
			}
		}
	}
	return Item{}, ErrNoItems
}
