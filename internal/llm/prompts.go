package llm

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

var (
	//go:embed prompts/resume_system.txt
	resumeSystemPrompt string
	//go:embed prompts/resume_user.tmpl
	resumeUserPrompt string

	resumeUserTemplate = template.Must(template.New("resume_user").Parse(resumeUserPrompt))
)

// ResumeSections are the fixed sections every generated resume is asked to contain.
var ResumeSections = []string{
	"Name",
	"Professional Summary",
	"Key Skills",
	"Work Experience",
	"Education",
	"Certifications",
	"Technical Skills",
}

// ResumePromptInput is the data rendered into the resume prompt.
type ResumePromptInput struct {
	Narrative string
	Email     string
	Phone     string
}

// ResumeSystemPrompt returns the system message for resume generation.
func ResumeSystemPrompt() string {
	return strings.TrimSpace(resumeSystemPrompt)
}

// RenderResumePrompt builds the composite user prompt from the narrative and contact block.
func RenderResumePrompt(in ResumePromptInput) (string, error) {
	var b strings.Builder
	data := struct {
		ResumePromptInput
		Sections []string
	}{in, ResumeSections}
	if err := resumeUserTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render resume prompt: %w", err)
	}
	return strings.TrimSpace(b.String()) + "\n", nil
}
