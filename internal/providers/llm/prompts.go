package llm

import (
	"fmt"
	"strings"

	"github.com/hireloop/hireloop/internal/models"
)

func questionPrompt(difficulty models.Difficulty, cand CandidateContext) string {
	return fmt.Sprintf(`Generate a %s level Full Stack Developer (React/Node.js) interview question.
The candidate's background: Name: %s, Email: %s

Make the question specific, practical, and appropriate for the %s level.
For easy questions: focus on basic concepts and syntax
For medium questions: focus on practical implementation and best practices
For hard questions: focus on complex scenarios, performance, and architecture

Return only the question text, no additional formatting.`,
		difficulty, cand.Name, cand.Email, difficulty)
}

func scoringPrompt(questionText, answerText string) string {
	return fmt.Sprintf(`Score this Full Stack Developer interview answer on a scale of 0-100.

Question: %s
Answer: %s

Provide a score based on technical accuracy, completeness, and clarity.
Also provide brief feedback (max 20 words).

Return your response in the following JSON format:
{"score": <integer 0-100>, "feedback": "<brief feedback>"}`,
		questionText, answerText)
}

func summaryPrompt(cand CandidateContext, finalScore int, results []QuestionScore) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("Q%d (%s): %d/100", i+1, r.Difficulty, r.Score))
	}

	return fmt.Sprintf(`Create a brief professional summary (max 100 words) for this Full Stack Developer interview candidate:

Candidate: %s
Final Score: %d/100

Questions and scores: %s

Focus on strengths, areas for improvement, and overall recommendation.`,
		cand.Name, finalScore, strings.Join(parts, ", "))
}

func extractionPrompt(resumeText string) string {
	return fmt.Sprintf(`Extract the candidate's details from the resume text below.

Return your response in the following JSON format:
{
  "name": "<full name>",
  "email": "<email address>",
  "phone": "<phone number, empty string if absent>",
  "skills": ["<skill>", ...],
  "experience": [{"company": "...", "title": "...", "period": "..."}],
  "education": [{"institution": "...", "degree": "...", "period": "..."}]
}

Use empty strings or empty arrays for anything the resume does not state.

RESUME:
%s`, resumeText)
}
