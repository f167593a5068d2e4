package api

type ChatMessage struct {
	ID               int64         `json:"id"`
	Text             string        `json:"text"`
	IsUser           bool          `json:"isUser"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	AttachedFile     *AttachedFile `json:"attachedFile,omitempty"`
	CreatedAt        int64         `json:"createdAt"`
}

type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
}

type ListConversationsParams struct {
	Limit int `schema:"limit"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type CreateConversationRequest struct {
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
}

type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// SaveMessageRequest carries the client's current-conversation pointer. An
// empty ConversationID means no conversation is active and the store starts a
// new one; the response returns the id the client should carry forward.
type SaveMessageRequest struct {
	ConversationID string      `json:"conversationId,omitempty"`
	Message        ChatMessage `json:"message"`
}

type SaveMessageResponse struct {
	ConversationID string `json:"conversation_id"`
}

type ReplaceMessagesRequest struct {
	Messages []ChatMessage `json:"messages"`
}
