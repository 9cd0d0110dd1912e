package llm

import (
	"strings"
	"testing"
)

func TestRenderResumePrompt(t *testing.T) {
	got, err := RenderResumePrompt(ResumePromptInput{
		Narrative: "5 years as a welder",
		Email:     "a@b.com",
		Phone:     "555-0100",
	})
	if err != nil {
		t.Fatalf("RenderResumePrompt: %v", err)
	}
	for _, want := range []string{
		"Input: 5 years as a welder",
		"- Email: a@b.com",
		"- Phone: 555-0100",
		"- Name:",
		"- Professional Summary:",
		"- Technical Skills:",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "- Name:") > strings.Index(got, "- Technical Skills:") {
		t.Fatalf("sections out of order:\n%s", got)
	}
}

func TestRenderResumePromptEmptyContact(t *testing.T) {
	got, err := RenderResumePrompt(ResumePromptInput{Narrative: "nurse"})
	if err != nil {
		t.Fatalf("RenderResumePrompt: %v", err)
	}
	if !strings.Contains(got, "- Email: \n") || !strings.Contains(got, "- Phone: \n") {
		t.Fatalf("expected empty contact lines:\n%q", got)
	}
}

func TestResumeSystemPrompt(t *testing.T) {
	if got := ResumeSystemPrompt(); got != "You are a professional resume writer." {
		t.Fatalf("unexpected system prompt %q", got)
	}
}
