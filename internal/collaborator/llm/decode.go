package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

var errNoJSON = errors.New("no JSON found in completion")

// jsonPayload trims code fences and surrounding prose from a completion and
// returns the outermost JSON object or array.
func jsonPayload(content string) ([]byte, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			if candidate := []byte(s[start : end+1]); json.Valid(candidate) {
				return candidate, nil
			}
		}
	}
	return nil, errNoJSON
}

func decodeObject(content string, v any) error {
	payload, err := jsonPayload(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	return nil
}

// decodeExtraction accepts a single event object, {"events": [...]}, or a bare
// array of events.
func decodeExtraction(content string) (funding.ExtractionResult, error) {
	payload, err := jsonPayload(content)
	if err != nil {
		return funding.ExtractionResult{}, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(payload), []byte("[")) {
		var drafts []funding.FundingEventDraft
		if err := json.Unmarshal(payload, &drafts); err != nil {
			return funding.ExtractionResult{}, fmt.Errorf("decode events: %w", err)
		}
		return funding.Multiple(drafts), nil
	}

	var envelope struct {
		Events []funding.FundingEventDraft `json:"events"`
		funding.FundingEventDraft
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return funding.ExtractionResult{}, fmt.Errorf("decode event: %w", err)
	}
	if envelope.Events != nil {
		return funding.Multiple(envelope.Events), nil
	}
	return funding.Single(envelope.FundingEventDraft), nil
}
