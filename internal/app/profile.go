package app

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"ai-weekly-planner/internal/planner"
)

// Request is a parsed plan request: who the plan is for and which days.
type Request struct {
	Profile planner.UserProfile
	Days    []string
}

// ParseRequest reads "key: value" lines such as
//
//	age: 34
//	goal: lose weight
//	diet: vegetarian, low sodium
//	days: Monday, Wednesday
//
// Unknown keys are rejected so typos surface. "days" also accepts a count,
// which selects that many days starting on Monday. Without it the whole week
// is planned.
func ParseRequest(text string) (Request, error) {
	var req Request
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "/") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Request{}, fmt.Errorf("expected 'key: value', got '%s'", line)
		}
		if err := req.set(strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)); err != nil {
			return Request{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return Request{}, fmt.Errorf("failed to read request: %w", err)
	}
	if len(req.Days) == 0 {
		req.Days = planner.Week(7)
	}
	return req, nil
}

func (r *Request) set(key, value string) error {
	p := &r.Profile
	switch key {
	case "age":
		age, err := strconv.Atoi(value)
		if err != nil || age <= 0 {
			return fmt.Errorf("invalid age '%s'", value)
		}
		p.Age = age
	case "gender", "sex":
		p.Gender = value
	case "cuisine", "ethnicity":
		p.Ethnicity = value
	case "conditions", "medical", "medical conditions":
		p.MedicalConditions = value
	case "goal", "fitness goal":
		p.FitnessGoal = value
	case "exclude", "exclusions", "allergies":
		p.Exclusions = value
	case "diet", "preferences":
		p.DietaryPreferences = splitList(value)
	case "days":
		days, err := ParseDays(value)
		if err != nil {
			return err
		}
		r.Days = days
	default:
		return fmt.Errorf("unknown field '%s'", key)
	}
	return nil
}

// ParseDays accepts a count ("3") or a comma separated list of day labels.
// Repeated days are kept once, in first-seen order.
func ParseDays(value string) ([]string, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if n < 1 || n > 7 {
			return nil, fmt.Errorf("days must be between 1 and 7, got %d", n)
		}
		return planner.Week(n), nil
	}
	var days []string
	seen := map[string]bool{}
	for _, d := range splitList(value) {
		label := planner.NormalizeDayLabel(d)
		key := strings.ToLower(label)
		if label == "" || seen[key] {
			continue
		}
		seen[key] = true
		days = append(days, label)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no days given")
	}
	return days, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
