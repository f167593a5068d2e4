package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"deepchat-backend/internal/history"
	"deepchat-backend/pkg/api"
)

type HistoryService struct {
	store *history.Store
}

func NewHistoryService(store *history.Store) *HistoryService {
	return &HistoryService{store: store}
}

func (s *HistoryService) AddRoutes(r chi.Router) {
	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListConversations))
		r.Post("/", RestHandler(s.CreateConversation))
		r.Delete("/", RestHandler(s.ClearConversations))
		r.Post("/messages", RestHandler(s.SaveMessage))
		r.Get("/{conversation_id}", RestHandler(s.GetConversation))
		r.Put("/{conversation_id}/messages", RestHandler(s.ReplaceMessages))
		r.Delete("/{conversation_id}", RestHandler(s.DeleteConversation))
	})
}

func (s *HistoryService) ListConversations(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListConversationsParams](r)
	if err != nil {
		return nil, err
	}

	conversations, err := s.store.ListConversations(r.Context(), params.Limit)
	if err != nil {
		return nil, err
	}

	resp := api.ListConversationsResponse{Conversations: make([]api.Conversation, 0, len(conversations))}
	for _, conv := range conversations {
		resp.Conversations = append(resp.Conversations, toAPIConversation(conv))
	}
	return resp, nil
}

func (s *HistoryService) GetConversation(r *http.Request) (any, error) {
	id, err := URLParamString(r, "conversation_id")
	if err != nil {
		return nil, err
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		return nil, CodedErrorf(http.StatusNotFound, "conversation not found")
	}
	if err != nil {
		return nil, err
	}

	return toAPIConversation(conv), nil
}

func (s *HistoryService) CreateConversation(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateConversationRequest](r)
	if err != nil {
		return nil, err
	}

	id, err := s.store.CreateConversation(r.Context(), req.Title, fromAPIMessages(req.Messages))
	if err != nil {
		return nil, err
	}

	return api.CreateConversationResponse{ConversationID: id}, nil
}

// SaveMessage appends a message to the caller's current conversation. The
// request's conversationId is the session pointer; the response echoes back
// the id the client should treat as current, which differs from the request
// when a new conversation was started.
func (s *HistoryService) SaveMessage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SaveMessageRequest](r)
	if err != nil {
		return nil, err
	}

	sess := &history.Session{CurrentConversationID: req.ConversationID}
	if _, err := s.store.SaveMessage(r.Context(), sess, fromAPIMessage(req.Message)); err != nil {
		return nil, err
	}

	return api.SaveMessageResponse{ConversationID: sess.CurrentConversationID}, nil
}

func (s *HistoryService) ReplaceMessages(r *http.Request) (any, error) {
	id, err := URLParamString(r, "conversation_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.ReplaceMessagesRequest](r)
	if err != nil {
		return nil, err
	}

	err = s.store.ReplaceMessages(r.Context(), id, fromAPIMessages(req.Messages))
	if errors.Is(err, history.ErrNotFound) {
		return nil, CodedErrorf(http.StatusNotFound, "conversation not found")
	}
	return nil, err
}

func (s *HistoryService) DeleteConversation(r *http.Request) (any, error) {
	id, err := URLParamString(r, "conversation_id")
	if err != nil {
		return nil, err
	}

	// The current-conversation pointer lives with the client session, so there
	// is no server-side session to clear here.
	return nil, s.store.DeleteConversation(r.Context(), nil, id)
}

func (s *HistoryService) ClearConversations(r *http.Request) (any, error) {
	return nil, s.store.ClearAll(r.Context(), nil)
}
