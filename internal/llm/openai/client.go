package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"resume-intake/internal/llm"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/metrics"
)

// Mode selects between the public OpenAI API and an Azure OpenAI resource.
type Mode string

const (
	ModeOpenAI Mode = "openai"
	ModeAzure  Mode = "azure"
)

// Options configures a Client. For Azure, Model is the deployment name.
type Options struct {
	Mode       Mode
	Endpoint   string
	APIKey     string
	APIVersion string
	Model      string
	Timeout    time.Duration
	Dimensions int

	// ModelSetting names the setting that supplies Model, for configuration errors.
	ModelSetting string
	HTTPClient   *http.Client
}

// Client implements llm.Completer, llm.Embedder and llm.Transcriber with the official SDK.
// SDK retries are disabled: one upstream failure is terminal for the call.
type Client struct {
	sdk        *sdk.Client
	mode       Mode
	model      string
	dimensions int
}

// New validates opts and constructs a Client.
func New(opts Options) (*Client, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	switch opts.Mode {
	case ModeAzure:
		reqOpts = append(reqOpts,
			azure.WithEndpoint(strings.TrimRight(opts.Endpoint, "/"), opts.APIVersion),
			azure.WithAPIKey(opts.APIKey),
		)
	default:
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
		if opts.Endpoint != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(opts.Endpoint))
		}
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	client := sdk.NewClient(reqOpts...)
	return &Client{
		sdk:        &client,
		mode:       opts.Mode,
		model:      opts.Model,
		dimensions: opts.Dimensions,
	}, nil
}

func validate(opts Options) error {
	component := "openai"
	modelSetting := opts.ModelSetting
	if opts.Mode == ModeAzure {
		component = "azure-openai"
		if modelSetting == "" {
			modelSetting = "deployment name"
		}
		return errs.RequireSettings(component,
			[2]string{"AZURE_OPENAI_ENDPOINT", opts.Endpoint},
			[2]string{"AZURE_OPENAI_API_KEY", opts.APIKey},
			[2]string{modelSetting, opts.Model},
			[2]string{"AZURE_OPENAI_API_VERSION", opts.APIVersion},
		)
	}
	if modelSetting == "" {
		modelSetting = "LLM_MODEL"
	}
	return errs.RequireSettings(component,
		[2]string{"OPENAI_API_KEY", opts.APIKey},
		[2]string{modelSetting, opts.Model},
	)
}

// Complete sends one system and one user message and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(req.System),
			sdk.UserMessage(req.User),
		},
	}
	if supportsTemperature(c.model) {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(req.MaxTokens)
	}

	start := time.Now()
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	metrics.ObserveUpstream(c.provider(), time.Since(start))
	if err != nil {
		return "", c.upstream("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.UpstreamStatus(c.provider(), "chat completion", 0, "response missing choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the vector of the first data element for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	params := sdk.EmbeddingNewParams{
		Input:          sdk.EmbeddingNewParamsInputUnion{OfString: sdk.String(text)},
		Model:          sdk.EmbeddingModel(c.model),
		EncodingFormat: sdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		params.Dimensions = sdk.Int(int64(c.dimensions))
	}

	start := time.Now()
	resp, err := c.sdk.Embeddings.New(ctx, params)
	metrics.ObserveUpstream(c.provider(), time.Since(start))
	if err != nil {
		return nil, c.upstream("embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, errs.UpstreamStatus(c.provider(), "embedding", 0, "response missing data")
	}
	return resp.Data[0].Embedding, nil
}

// Transcribe uploads audio to the transcription endpoint and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio llm.Audio) (string, error) {
	name := audio.FileName
	if name == "" {
		name = "audio.wav"
	}
	params := sdk.AudioTranscriptionNewParams{
		File:  sdk.File(audio.Data, name, audio.ContentType),
		Model: sdk.AudioModel(c.model),
	}

	start := time.Now()
	resp, err := c.sdk.Audio.Transcriptions.New(ctx, params)
	metrics.ObserveUpstream(c.provider(), time.Since(start))
	if err != nil {
		return "", c.upstream("transcription", err)
	}
	return resp.Text, nil
}

func (c *Client) provider() string {
	if c.mode == ModeAzure {
		return "azure-openai"
	}
	return "openai"
}

func (c *Client) upstream(op string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &errs.UpstreamError{Provider: c.provider(), Op: op, Status: apiErr.StatusCode, Message: msg, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &errs.UpstreamError{Provider: c.provider(), Op: op, Message: "request timeout", Err: err}
	}
	return &errs.UpstreamError{Provider: c.provider(), Op: op, Message: fmt.Sprint(err), Err: err}
}

// supportsTemperature reports whether the model accepts a sampling temperature.
// Reasoning models (gpt-5, o-series) reject it.
func supportsTemperature(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if strings.HasPrefix(m, "gpt-5") {
		return false
	}
	if len(m) > 1 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9' {
		return false
	}
	return true
}

var (
	_ llm.Completer   = (*Client)(nil)
	_ llm.Embedder    = (*Client)(nil)
	_ llm.Transcriber = (*Client)(nil)
)
