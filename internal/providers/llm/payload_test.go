package llm

import "testing"

func TestParseScorePayload(t *testing.T) {
	res, err := parseScorePayload(`{"score": 85, "feedback": "solid"}`)
	if err != nil {
		t.Fatalf("parseScorePayload error: %v", err)
	}
	if res.Score != 85 || res.Feedback != "solid" {
		t.Fatalf("got %+v", res)
	}
}

func TestParseScorePayloadRoundsFractionalScores(t *testing.T) {
	res, err := parseScorePayload(`{"score": 72.6, "feedback": ""}`)
	if err != nil {
		t.Fatalf("parseScorePayload error: %v", err)
	}
	if res.Score != 73 {
		t.Fatalf("score = %d, want 73", res.Score)
	}
}

func TestParseScorePayloadStripsFences(t *testing.T) {
	raw := "```json\n{\"score\": 40, \"feedback\": \"thin answer\"}\n```"
	res, err := parseScorePayload(raw)
	if err != nil {
		t.Fatalf("parseScorePayload error: %v", err)
	}
	if res.Score != 40 || res.Feedback != "thin answer" {
		t.Fatalf("got %+v", res)
	}
}

func TestParseScorePayloadRejectsOutOfRange(t *testing.T) {
	if _, err := parseScorePayload(`{"score": 130, "feedback": ""}`); err == nil {
		t.Fatal("expected error for score above 100")
	}
	if _, err := parseScorePayload(`{"score": -5, "feedback": ""}`); err == nil {
		t.Fatal("expected error for negative score")
	}
}

func TestParseScorePayloadRejectsGarbage(t *testing.T) {
	if _, err := parseScorePayload("the answer was decent"); err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
}

func TestParseExtractionPayload(t *testing.T) {
	raw := `{"name":"Ada Lovelace","email":"ada@example.com","phone":"+44 20 1234",
		"skills":["react","node.js"],
		"experience":[{"company":"Analytical Engines Ltd"}],
		"education":[{"school":"Home tutoring"}]}`

	ext, err := parseExtractionPayload(raw)
	if err != nil {
		t.Fatalf("parseExtractionPayload error: %v", err)
	}
	if ext.Name != "Ada Lovelace" || ext.Email != "ada@example.com" {
		t.Fatalf("identity fields wrong: %+v", ext)
	}
	if len(ext.Skills) != 2 || ext.Skills[0] != "react" {
		t.Fatalf("skills wrong: %+v", ext.Skills)
	}
	if len(ext.Experience) == 0 || len(ext.Education) == 0 {
		t.Fatal("raw sections not carried through")
	}
}

func TestStripFencesLeavesPlainJSONAlone(t *testing.T) {
	in := `{"score": 10}`
	if out := stripFences(in); out != in {
		t.Fatalf("stripFences(%q) = %q", in, out)
	}
}
