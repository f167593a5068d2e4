package history

import "gorm.io/datatypes"

type AttachedFile struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

// Message is immutable once persisted; the reasoning trace accumulated during
// streaming is reconciled afterwards via ReplaceMessages.
type Message struct {
	ID               int64         `json:"id"` // sequence-local, not globally unique
	Text             string        `json:"text"`
	IsUser           bool          `json:"isUser"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	AttachedFile     *AttachedFile `json:"attachedFile,omitempty"`
	CreatedAt        int64         `json:"createdAt"` // unix ms
}

type Conversation struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt int64 // unix ms
	UpdatedAt int64 // unix ms, always >= CreatedAt
}

// ConversationRecord is the stored row. The message sequence lives in a single
// JSON column so every write replaces the record as a whole; there is no
// partially-updated state for a reader to observe.
type ConversationRecord struct {
	ID        string `gorm:"primaryKey"`
	Title     string
	Messages  datatypes.JSON
	CreatedAt int64 `gorm:"autoCreateTime:false"`
	UpdatedAt int64 `gorm:"index:idx_conversations_updated_at;autoUpdateTime:false"`
}

func (ConversationRecord) TableName() string {
	return "conversations"
}
