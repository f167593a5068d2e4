package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"deepchat-backend/internal/relay"
	"deepchat-backend/pkg/api"
)

type ChatService struct {
	relay *relay.Client
}

func NewChatService(relayClient *relay.Client) *ChatService {
	return &ChatService{relay: relayClient}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Post("/chat", s.Chat)
}

// Chat relays the request upstream and pipes the streamed response through as
// server-sent events. Errors before the first byte become JSON error
// responses; once streaming has started the stream just ends early on failure.
func (s *ChatService) Chat(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		WriteErrorResponse(w, CodedErrorf(http.StatusBadRequest, "message is required"))
		return
	}

	if err := validateAttachment(req.AttachedFile); err != nil {
		WriteErrorResponse(w, err)
		return
	}

	stream, err := s.relay.Relay(r.Context(), req.Message, req.IsReasoningEnabled, req.AttachedFile)
	if err != nil {
		WriteErrorResponse(w, mapRelayError(err))
		return
	}
	defer stream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("response writer does not support flushing")
		WriteErrorResponse(w, CodedErrorf(http.StatusInternalServerError, "streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Forward chunks in arrival order, flushing each one. No buffering and no
	// reframing; the body is the upstream's bytes.
	buf := make([]byte, 32*1024)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				slog.Info("client disconnected mid-stream, stopping forward", "error", writeErr)
				return
			}
			flusher.Flush()
		}

		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			slog.Error("upstream stream ended early", "error", readErr)
			return
		}
	}
}

// validateAttachment rejects malformed attachment shapes before any prompt is
// built from them.
func validateAttachment(attached *api.AttachedFile) error {
	if attached == nil {
		return nil
	}
	if attached.FileID == "" || attached.FileName == "" || attached.FileURL == "" {
		return CodedErrorf(http.StatusBadRequest, "attachedFile must include fileId, fileName, and fileUrl")
	}
	return nil
}

func mapRelayError(err error) error {
	if errors.Is(err, relay.ErrAPIKeyMissing) {
		return CodedError(http.StatusInternalServerError, errors.New("API Key not configured"))
	}

	var upstreamErr *relay.UpstreamError
	if errors.As(err, &upstreamErr) {
		return CodedError(http.StatusBadGateway, errors.New(upstreamErr.Message))
	}

	return err
}
