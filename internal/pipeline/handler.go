package pipeline

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"resume-intake/internal/extract"
	"resume-intake/internal/llm"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/server/respond"
	"resume-intake/internal/shared/util"
	"resume-intake/internal/submissions"
)

// DefaultMaxUploadBytes bounds multipart file and audio parts.
const DefaultMaxUploadBytes int64 = 10 << 20

// Submitter runs one submission.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) Outcome
}

// Handler exposes resume submission and transcription over HTTP.
type Handler struct {
	Pipeline       Submitter
	Transcriber    llm.Transcriber
	MaxUploadBytes int64
}

// NewHandler constructs a Handler. transcriber may be nil when audio input is not configured.
func NewHandler(p Submitter, transcriber llm.Transcriber, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{Pipeline: p, Transcriber: transcriber, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches submission routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes", h.submit)
	rg.POST("/transcriptions", h.transcribe)
}

type submitRequest struct {
	Narrative string `json:"narrative"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type outcomeResponse struct {
	SubmissionID      string             `json:"submissionId"`
	Status            Status             `json:"status"`
	Stage             Stage              `json:"stage,omitempty"`
	Resume            string             `json:"resume,omitempty"`
	ResumeLocation    string             `json:"resumeLocation,omitempty"`
	EmbeddingLocation string             `json:"embeddingLocation,omitempty"`
	Message           string             `json:"message,omitempty"`
	Error             *respond.ErrorBody `json:"error,omitempty"`
}

func (h *Handler) submit(c *gin.Context) {
	sub, err := h.readSubmission(c)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	sub.ID = uuid.NewString()
	c.Set("submissionId", sub.ID)
	if sub.Email != "" {
		c.Set("candidateEmail", sub.Email)
	}

	out := h.Pipeline.Submit(c.Request.Context(), sub)
	if stage := out.Reason(); stage != "" {
		c.Set("pipelineStage", string(stage))
	}
	status, body := describeOutcome(sub.ID, out)
	respond.JSON(c, status, body)
}

func describeOutcome(id string, out Outcome) (int, outcomeResponse) {
	resp := outcomeResponse{SubmissionID: id, Status: out.Status(), Stage: out.Reason()}
	switch o := out.(type) {
	case Completed:
		resp.Resume = o.Resume.Body
		resp.ResumeLocation = o.ResumeLocation.Path()
		resp.EmbeddingLocation = o.EmbeddingLocation.Path()
		resp.Message = o.ResumeLocation.Message()
		return http.StatusCreated, resp
	case PartialFailure:
		resp.Resume = o.Resume.Body
		resp.ResumeLocation = o.StoredSoFar.Path()
		resp.Message = o.StoredSoFar.Message()
		_, body := respond.Describe(o.Cause)
		resp.Error = &body
		return http.StatusMultiStatus, resp
	case Failed:
		if o.Resume != nil {
			resp.Resume = o.Resume.Body
		}
		status, body := respond.Describe(o.Cause)
		resp.Error = &body
		return status, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func (h *Handler) readSubmission(c *gin.Context) (Submission, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return Submission{}, errs.Invalid("body", "must be JSON with a narrative")
		}
		return Submission{Narrative: req.Narrative, Email: req.Email, Phone: req.Phone, Source: submissions.SourceText}, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+(1<<20))
	form, err := c.MultipartForm()
	if err != nil {
		return Submission{}, errs.Invalid("body", "malformed multipart form")
	}
	sub := Submission{
		Narrative: firstValue(form, "narrative"),
		Email:     firstValue(form, "email"),
		Phone:     firstValue(form, "phone"),
		Source:    submissions.SourceText,
	}
	if strings.TrimSpace(sub.Narrative) != "" {
		return sub, nil
	}

	if fh := firstFile(form, "file"); fh != nil {
		name, data, err := h.readPart(fh)
		if err != nil {
			return Submission{}, err
		}
		text, err := extract.Text(c.Request.Context(), data, fh.Header.Get("Content-Type"), name)
		if err != nil {
			return Submission{}, err
		}
		sub.Narrative, sub.Source = text, submissions.SourceFile
		return sub, nil
	}

	if fh := firstFile(form, "audio"); fh != nil {
		text, err := h.transcribePart(c.Request.Context(), fh)
		if err != nil {
			return Submission{}, err
		}
		sub.Narrative, sub.Source = text, submissions.SourceAudio
		return sub, nil
	}

	return sub, nil
}

func (h *Handler) transcribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+(1<<20))
	fh, err := c.FormFile("audio")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "audio file is required", nil)
		return
	}
	text, err := h.transcribePart(c.Request.Context(), fh)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, gin.H{"text": text})
}

func (h *Handler) transcribePart(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if h.Transcriber == nil {
		return "", errs.Config("transcription", "TRANSCRIPTION_MODEL")
	}
	name, data, err := h.readPart(fh)
	if err != nil {
		return "", err
	}
	text, err := h.Transcriber.Transcribe(ctx, llm.Audio{
		FileName:    name,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.Invalid("audio", "no speech recognized")
	}
	return text, nil
}

func (h *Handler) readPart(fh *multipart.FileHeader) (string, []byte, error) {
	name, err := util.SanitizeFileName(fh.Filename)
	if err != nil {
		return "", nil, err
	}
	if fh.Size > h.MaxUploadBytes {
		return "", nil, errs.Invalid(name, "exceeds the upload size limit")
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, errs.Invalid(name, "could not be read")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil {
		return "", nil, errs.Invalid(name, "could not be read")
	}
	if int64(len(data)) > h.MaxUploadBytes {
		return "", nil, errs.Invalid(name, "exceeds the upload size limit")
	}
	return name, data, nil
}

func firstValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func firstFile(form *multipart.Form, key string) *multipart.FileHeader {
	if files := form.File[key]; len(files) > 0 {
		return files[0]
	}
	return nil
}
