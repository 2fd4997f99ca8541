package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"

	"github.com/hireloop/hireloop/internal/models"
)

// VertexGemini backs all four Provider operations with two model handles:
// a plain-text one for questions/summaries and a JSON-mode one for the
// structured scoring and extraction payloads.
type VertexGemini struct {
	client    *vertexgenai.Client
	textModel *vertexgenai.GenerativeModel
	jsonModel *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	text := c.GenerativeModel(modelName)

	jsonModel := c.GenerativeModel(modelName)
	jsonModel.GenerationConfig.ResponseMIMEType = "application/json"

	return &VertexGemini{client: c, textModel: text, jsonModel: jsonModel}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) GenerateQuestion(ctx context.Context, difficulty models.Difficulty, cand CandidateContext) (string, error) {
	return v.generateText(ctx, v.textModel, questionPrompt(difficulty, cand))
}

func (v *VertexGemini) ScoreAnswer(ctx context.Context, questionText, answerText string) (ScoreResult, error) {
	raw, err := v.generateText(ctx, v.jsonModel, scoringPrompt(questionText, answerText))
	if err != nil {
		return ScoreResult{}, err
	}
	return parseScorePayload(raw)
}

func (v *VertexGemini) GenerateSummary(ctx context.Context, cand CandidateContext, finalScore int, results []QuestionScore) (string, error) {
	return v.generateText(ctx, v.textModel, summaryPrompt(cand, finalScore, results))
}

func (v *VertexGemini) ExtractResume(ctx context.Context, resumeText string) (ResumeExtraction, error) {
	raw, err := v.generateText(ctx, v.jsonModel, extractionPrompt(resumeText))
	if err != nil {
		return ResumeExtraction{}, err
	}
	return parseExtractionPayload(raw)
}

func (v *VertexGemini) generateText(ctx context.Context, m *vertexgenai.GenerativeModel, prompt string) (string, error) {
	resp, err := m.GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return "", err
	}

	var out string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				out += string(t)
			}
		}
	}

	if out == "" {
		return "", errors.New("empty model response")
	}
	return out, nil
}
