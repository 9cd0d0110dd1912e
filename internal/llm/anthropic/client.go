package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"resume-intake/internal/llm"
	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/metrics"
)

const provider = "anthropic"

// defaultMaxTokens applies when the request leaves MaxTokens unset; the Messages API requires it.
const defaultMaxTokens = 2048

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements llm.Completer on the Anthropic Messages API.
type Client struct {
	sdk   *sdk.Client
	model string
}

// New validates opts and constructs a Client.
func New(opts Options) (*Client, error) {
	if err := errs.RequireSettings(provider,
		[2]string{"ANTHROPIC_API_KEY", opts.APIKey},
		[2]string{"LLM_MODEL", opts.Model},
	); err != nil {
		return nil, err
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	client := sdk.NewClient(reqOpts...)
	return &Client{sdk: &client, model: opts.Model}, nil
}

// Complete sends the system prompt and one user turn, returning the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.User)),
		},
		Temperature: sdk.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	metrics.ObserveUpstream(provider, time.Since(start))
	if err != nil {
		return "", upstream(err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func upstream(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		msg := http.StatusText(apiErr.StatusCode)
		if raw := strings.TrimSpace(apiErr.Error()); raw != "" {
			msg = raw
		}
		return &errs.UpstreamError{Provider: provider, Op: "messages", Status: apiErr.StatusCode, Message: msg, Err: err}
	}
	return &errs.UpstreamError{Provider: provider, Op: "messages", Message: fmt.Sprint(err), Err: err}
}

var _ llm.Completer = (*Client)(nil)
