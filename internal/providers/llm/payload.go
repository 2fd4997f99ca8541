package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// stripFences removes markdown code fences the model sometimes wraps
// around JSON despite the JSON response MIME type.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func parseScorePayload(raw string) (ScoreResult, error) {
	var payload struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return ScoreResult{}, fmt.Errorf("malformed scoring payload: %w", err)
	}

	score := int(math.Round(payload.Score))
	if score < 0 || score > 100 {
		return ScoreResult{}, fmt.Errorf("score %d out of range 0-100", score)
	}

	return ScoreResult{Score: score, Feedback: payload.Feedback}, nil
}

func parseExtractionPayload(raw string) (ResumeExtraction, error) {
	var out ResumeExtraction
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return ResumeExtraction{}, fmt.Errorf("malformed extraction payload: %w", err)
	}
	return out, nil
}
