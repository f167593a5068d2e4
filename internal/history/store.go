package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by lookups for a conversation id that does not
	// exist. Call sites that expect existence log it; it is never fatal.
	ErrNotFound = errors.New("conversation not found")

	// ErrStorageUnavailable indicates the underlying database could not be
	// opened. Callers degrade to an empty, non-persistent history.
	ErrStorageUnavailable = errors.New("history storage unavailable")
)

// Titles are derived from the first user message, truncated to this many runes.
const maxTitleLen = 30

const defaultNewTitle = "New Conversation"

// Store persists conversations in an embedded sqlite database, keyed by
// conversation id with a secondary index on update time for listing.
type Store struct {
	// SQLite only supports one writer at a time, so we need a lock
	// whenever we write to the database
	mu sync.Mutex
	db *gorm.DB

	// now is swapped out in tests to control update-time ordering.
	now func() int64
}

// Session holds per-client state: which conversation, if any, is current.
// It is passed explicitly into store operations so concurrent sessions can
// each hold independent state without a shared global pointer.
type Session struct {
	CurrentConversationID string
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &Store{db: db, now: nowMillis}, nil
}

// OpenFallback opens the store at path, degrading to an in-memory database if
// the file cannot be opened. History written in degraded mode is lost when the
// process exits; the failure is logged but never surfaced to the user.
func OpenFallback(path string) *Store {
	store, err := Open(path)
	if err == nil {
		return store
	}
	slog.Error("could not open history database, falling back to in-memory store", "path", path, "error", err)

	store, err = Open("file::memory:")
	if err != nil {
		log.Fatalf("could not open in-memory history store: %v", err)
	}
	return store
}

func newConversationID() string {
	return fmt.Sprintf("conv_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen])
	}
	return text
}

func marshalMessages(msgs []Message) (datatypes.JSON, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("could not marshal messages: %w", err)
	}
	return datatypes.JSON(b), nil
}

func (rec *ConversationRecord) toConversation() (Conversation, error) {
	var msgs []Message
	if len(rec.Messages) > 0 {
		if err := json.Unmarshal(rec.Messages, &msgs); err != nil {
			return Conversation{}, fmt.Errorf("could not unmarshal messages for conversation %s: %w", rec.ID, err)
		}
	}

	return Conversation{
		ID:        rec.ID,
		Title:     rec.Title,
		Messages:  msgs,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// ListConversations returns all conversations ordered most-recently-updated
// first. An empty store yields an empty slice, not an error. A limit <= 0
// means no limit.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	query := s.db.WithContext(ctx).Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []ConversationRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(records))
	for _, rec := range records {
		conv, err := rec.toConversation()
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var rec ConversationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	return rec.toConversation()
}

// CreateConversation allocates a fresh id from a nanosecond timestamp plus a
// random suffix, persists the conversation, and returns the new id. CreatedAt
// and UpdatedAt are equal on creation.
func (s *Store) CreateConversation(ctx context.Context, title string, initialMessages []Message) (string, error) {
	msgsJSON, err := marshalMessages(initialMessages)
	if err != nil {
		return "", err
	}

	rec := ConversationRecord{
		ID:        newConversationID(),
		Title:     title,
		Messages:  msgsJSON,
		CreatedAt: s.now(),
	}
	rec.UpdatedAt = rec.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

// SaveMessage appends msg to the session's current conversation. With no
// current conversation it starts one, titled from the message text for user
// messages, seeds it with msg, and points the session at it. The resulting
// conversation id is returned either way.
//
// If the current conversation vanished between lookup and write (deleted by
// another session) the message is dropped with a log line; this race is
// tolerated rather than coordinated.
func (s *Store) SaveMessage(ctx context.Context, sess *Session, msg Message) (string, error) {
	if sess.CurrentConversationID == "" {
		title := defaultNewTitle
		if msg.IsUser {
			title = truncateTitle(msg.Text)
		}

		id, err := s.CreateConversation(ctx, title, []Message{msg})
		if err != nil {
			return "", err
		}
		sess.CurrentConversationID = id
		return id, nil
	}

	id := sess.CurrentConversationID

	conv, err := s.GetConversation(ctx, id)
	if errors.Is(err, ErrNotFound) {
		slog.Error("conversation not found while saving message", "conversation_id", id)
		return id, nil
	}
	if err != nil {
		return "", err
	}

	conv.Messages = append(conv.Messages, msg)
	if len(conv.Messages) == 1 && msg.IsUser {
		conv.Title = truncateTitle(msg.Text)
	}

	if err := s.putConversation(ctx, conv); err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceMessages swaps a conversation's entire message sequence, used to
// reconcile a streamed response into its final form. Bumps the update time.
func (s *Store) ReplaceMessages(ctx context.Context, id string, msgs []Message) error {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}

	conv.Messages = msgs
	return s.putConversation(ctx, conv)
}

func (s *Store) DeleteConversation(ctx context.Context, sess *Session, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Delete(&ConversationRecord{}, "id = ?", id).Error; err != nil {
		return err
	}

	if sess != nil && sess.CurrentConversationID == id {
		sess.CurrentConversationID = ""
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&ConversationRecord{}).Error; err != nil {
		return err
	}

	if sess != nil {
		sess.CurrentConversationID = ""
	}
	return nil
}

// putConversation writes the full record back in one upsert, so a save either
// fully replaces the record or fails without partial mutation.
func (s *Store) putConversation(ctx context.Context, conv Conversation) error {
	msgsJSON, err := marshalMessages(conv.Messages)
	if err != nil {
		return err
	}

	rec := ConversationRecord{
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  msgsJSON,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: s.now(),
	}
	if rec.UpdatedAt < conv.CreatedAt {
		rec.UpdatedAt = conv.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Save(&rec).Error
}
