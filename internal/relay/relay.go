package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"deepchat-backend/pkg/api"
)

const (
	defaultBaseURL        = "https://api.deepseek.com"
	defaultChatModel      = "deepseek-chat"
	defaultReasoningModel = "deepseek-reasoner"

	completionsEndpoint = "/chat/completions"

	systemPrompt = "You are a helpful assistant."

	genericUpstreamMessage = "Failed to communicate with DeepSeek API"
)

// ErrAPIKeyMissing is returned when no upstream credential is configured.
// Surfaced as an internal error; the server still boots without a key.
var ErrAPIKeyMissing = errors.New("DeepSeek API key not configured")

// UpstreamError carries the upstream's reported message when it sent one.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream API error (status %d): %s", e.StatusCode, e.Message)
	}
	return e.Message
}

type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	ReasoningModel string
}

// Client relays chat requests to the upstream chat-completions API. It never
// parses the streamed response; the raw body is handed back for the transport
// layer to pipe through untouched.
type Client struct {
	apiKey         string
	chatModel      string
	reasoningModel string
	http           *resty.Client
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	reasoningModel := cfg.ReasoningModel
	if reasoningModel == "" {
		reasoningModel = defaultReasoningModel
	}

	return &Client{
		apiKey:         cfg.APIKey,
		chatModel:      chatModel,
		reasoningModel: reasoningModel,
		http:           resty.New().SetBaseURL(baseURL),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Relay sends message upstream in streaming mode and returns the raw response
// body. The stream is only returned once the upstream connection is confirmed
// open with a success status, so a failed request never yields partial output.
// The caller owns closing the returned stream.
func (c *Client) Relay(ctx context.Context, message string, reasoningEnabled bool, attached *api.AttachedFile) (io.ReadCloser, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	model := c.chatModel
	if reasoningEnabled {
		model = c.reasoningModel
	}

	body := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent(message, attached)},
		},
		Stream: true,
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(c.apiKey).
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(completionsEndpoint)
	if err != nil {
		slog.Error("unable to reach upstream API", "error", err)
		return nil, &UpstreamError{Message: genericUpstreamMessage}
	}

	stream := res.RawBody()
	if !res.IsSuccess() {
		defer stream.Close()
		return nil, readUpstreamError(res.StatusCode(), stream)
	}

	return stream, nil
}

// userContent builds the outgoing user message. Attachments are communicated
// by reference; the original message text is always a prefix of the result.
func userContent(message string, attached *api.AttachedFile) string {
	if attached == nil {
		return message
	}
	return fmt.Sprintf(
		"%s\n\nThe user attached a file named %q, available at %s. Please retrieve and analyze this file to answer the question.",
		message, attached.FileName, attached.FileURL,
	)
}

func readUpstreamError(statusCode int, body io.Reader) *UpstreamError {
	raw, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		slog.Error("error reading upstream error body", "status_code", statusCode, "error", err)
		return &UpstreamError{StatusCode: statusCode, Message: genericUpstreamMessage}
	}

	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := genericUpstreamMessage
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	slog.Error("upstream API rejected request", "status_code", statusCode, "message", message)
	return &UpstreamError{StatusCode: statusCode, Message: message}
}
