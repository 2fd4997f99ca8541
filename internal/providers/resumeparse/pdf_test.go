package resumeparse

import (
	"strings"
	"testing"
)

func TestCleanTextCollapsesBlankLines(t *testing.T) {
	in := "  Ada Lovelace  \n\n\n  Engineer \n\t\n ada@example.com "
	want := "Ada Lovelace\nEngineer\nada@example.com"
	if got := CleanText(in); got != want {
		t.Fatalf("CleanText = %q, want %q", got, want)
	}
}

func TestCleanTextEmpty(t *testing.T) {
	if got := CleanText("  \n \n "); got != "" {
		t.Fatalf("CleanText = %q, want empty", got)
	}
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	if _, err := ExtractText([]byte("just some plain text")); err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
	if _, err := ExtractText([]byte(strings.Repeat("a", 2048))); err == nil {
		t.Fatal("expected error for junk bytes")
	}
}
