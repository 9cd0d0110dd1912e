package main

// Run one submission or search against the configured adapters:
//   go run ./cmd/intake -narrative story.txt -email jane@example.com
//   go run ./cmd/intake -q "platform engineer" -top 3

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"resume-intake/internal/bootstrap"
	"resume-intake/internal/extract"
	"resume-intake/internal/pipeline"
	"resume-intake/internal/shared/config"
	"resume-intake/internal/shared/server/respond"
	"resume-intake/internal/shared/telemetry"
	"resume-intake/internal/submissions"
)

func main() {
	cfg := config.Load()

	narrativePath := flag.String("narrative", "", "Path to the narrative (txt, md, pdf or docx)")
	email := flag.String("email", "", "Candidate email")
	phone := flag.String("phone", "", "Candidate phone")
	query := flag.String("q", "", "Search query instead of a submission")
	top := flag.Int("top", 0, "Maximum search results")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	telemetry.Configure(*logLevel, "console")

	if strings.TrimSpace(*narrativePath) == "" && strings.TrimSpace(*query) == "" {
		exitErr("either -narrative or -q is required")
	}

	ctx := context.Background()
	app, err := bootstrap.BuildContext(ctx, cfg)
	if err != nil {
		exitErr(fmt.Sprintf("bootstrap: %v", err))
	}
	defer app.Close()

	var (
		payload any
		code    int
	)
	if strings.TrimSpace(*query) != "" {
		res, err := app.Pipeline.Search(ctx, *query, *top)
		if err != nil {
			exitErr(fmt.Sprintf("search: %v", err))
		}
		payload = res
	} else {
		narrative, err := readNarrative(ctx, *narrativePath)
		if err != nil {
			exitErr(err.Error())
		}
		out := app.Pipeline.Submit(ctx, pipeline.Submission{
			Narrative: narrative,
			Email:     *email,
			Phone:     *phone,
			Source:    sourceFor(*narrativePath),
		})
		payload, code = summarize(out)
	}

	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(append(pretty, '\n')); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if code != 0 {
		app.Close()
		os.Exit(code)
	}
}

func readNarrative(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read narrative: %w", err)
	}
	mimeType := ""
	if sourceFor(path) == submissions.SourceText {
		mimeType = "text/plain"
	}
	text, err := extract.Text(ctx, data, mimeType, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("extract narrative: %w", err)
	}
	return text, nil
}

func sourceFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx":
		return submissions.SourceFile
	default:
		return submissions.SourceText
	}
}

type summary struct {
	Status            pipeline.Status    `json:"status"`
	Stage             pipeline.Stage     `json:"stage,omitempty"`
	Resume            string             `json:"resume,omitempty"`
	ResumeLocation    string             `json:"resumeLocation,omitempty"`
	EmbeddingLocation string             `json:"embeddingLocation,omitempty"`
	Error             *respond.ErrorBody `json:"error,omitempty"`
}

// summarize flattens an outcome and picks the exit code: 0 completed, 2 partial, 1 failed.
func summarize(out pipeline.Outcome) (summary, int) {
	s := summary{Status: out.Status(), Stage: out.Reason()}
	if cause := out.Err(); cause != nil {
		_, body := respond.Describe(cause)
		s.Error = &body
	}
	switch o := out.(type) {
	case pipeline.Completed:
		s.Resume = o.Resume.Body
		s.ResumeLocation = o.ResumeLocation.Path()
		s.EmbeddingLocation = o.EmbeddingLocation.Path()
		return s, 0
	case pipeline.PartialFailure:
		s.Resume = o.Resume.Body
		s.ResumeLocation = o.StoredSoFar.Path()
		return s, 2
	case pipeline.Failed:
		if o.Resume != nil {
			s.Resume = o.Resume.Body
		}
	}
	return s, 1
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
