package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open("file::memory:")
	require.NoError(t, err)
	return store
}

// fakeClock makes update-time ordering deterministic in tests.
func fakeClock(start int64) func() int64 {
	now := start
	return func() int64 {
		now++
		return now
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	msgs := []Message{
		{ID: 1, Text: "what is Go?", IsUser: true, CreatedAt: 100},
		{ID: 2, Text: "a programming language", IsUser: false, CreatedAt: 101},
	}

	id, err := store.CreateConversation(ctx, "what is Go?", msgs)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, conv.ID)
	assert.Equal(t, "what is Go?", conv.Title)
	assert.Equal(t, msgs, conv.Messages)
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)
}

func TestConversationIDsDoNotCollide(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := store.CreateConversation(ctx, "t", nil)
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestGetConversationNotFound(t *testing.T) {
	store := createStore(t)

	_, err := store.GetConversation(context.Background(), "conv_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversationsEmpty(t *testing.T) {
	store := createStore(t)

	conversations, err := store.ListConversations(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, conversations)
	assert.NotNil(t, conversations)
}

func TestListConversationsOrdering(t *testing.T) {
	store := createStore(t)
	store.now = fakeClock(0)
	ctx := context.Background()

	idA, err := store.CreateConversation(ctx, "A", nil) // t=1
	require.NoError(t, err)
	idB, err := store.CreateConversation(ctx, "B", nil) // t=2
	require.NoError(t, err)

	// Touching A makes it the most recently updated again.
	require.NoError(t, store.ReplaceMessages(ctx, idA, []Message{{ID: 1, Text: "hi", IsUser: true}}))

	conversations, err := store.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, idA, conversations[0].ID)
	assert.Equal(t, idB, conversations[1].ID)

	// Listing is idempotent without intervening writes.
	again, err := store.ListConversations(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, conversations, again)
}

func TestListConversationsLimit(t *testing.T) {
	store := createStore(t)
	store.now = fakeClock(0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.CreateConversation(ctx, "t", nil)
		require.NoError(t, err)
	}

	conversations, err := store.ListConversations(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, conversations, 3)
}

func TestSaveMessageStartsConversation(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()
	sess := &Session{}

	id, err := store.SaveMessage(ctx, sess, Message{ID: 1, Text: "hello", IsUser: true})
	require.NoError(t, err)
	assert.Equal(t, id, sess.CurrentConversationID)

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", conv.Title)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello", conv.Messages[0].Text)

	// Follow-up assistant message appends to the same conversation and keeps
	// the title.
	id2, err := store.SaveMessage(ctx, sess, Message{ID: 2, Text: "hi there", IsUser: false})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	conv, err = store.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "hi there", conv.Messages[1].Text)
	assert.False(t, conv.Messages[1].IsUser)
}

func TestSaveMessageTruncatesTitle(t *testing.T) {
	store := createStore(t)
	sess := &Session{}

	long := strings.Repeat("a", 50)
	id, err := store.SaveMessage(context.Background(), sess, Message{ID: 1, Text: long, IsUser: true})
	require.NoError(t, err)

	conv, err := store.GetConversation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 30), conv.Title)
}

func TestSaveMessageAssistantFirst(t *testing.T) {
	store := createStore(t)
	sess := &Session{}

	id, err := store.SaveMessage(context.Background(), sess, Message{ID: 1, Text: "greetings", IsUser: false})
	require.NoError(t, err)

	conv, err := store.GetConversation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, defaultNewTitle, conv.Title)
}

func TestSaveMessageRederivesTitleOnFirstUserMessage(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "placeholder", nil)
	require.NoError(t, err)

	sess := &Session{CurrentConversationID: id}
	_, err = store.SaveMessage(ctx, sess, Message{ID: 1, Text: "real question", IsUser: true})
	require.NoError(t, err)

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "real question", conv.Title)
}

func TestSaveMessageVanishedConversation(t *testing.T) {
	store := createStore(t)
	sess := &Session{CurrentConversationID: "conv_gone"}

	// A deleted target is tolerated: the write is dropped without error.
	id, err := store.SaveMessage(context.Background(), sess, Message{ID: 1, Text: "hello", IsUser: true})
	require.NoError(t, err)
	assert.Equal(t, "conv_gone", id)

	_, err = store.GetConversation(context.Background(), "conv_gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceMessages(t *testing.T) {
	store := createStore(t)
	store.now = fakeClock(0)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "t", []Message{{ID: 1, Text: "a", IsUser: true}})
	require.NoError(t, err)

	replacement := []Message{
		{ID: 1, Text: "a", IsUser: true},
		{ID: 2, Text: "b", IsUser: false, ReasoningContent: "thinking..."},
	}
	require.NoError(t, store.ReplaceMessages(ctx, id, replacement))

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, replacement, conv.Messages)
	assert.Greater(t, conv.UpdatedAt, conv.CreatedAt)

	assert.ErrorIs(t, store.ReplaceMessages(ctx, "conv_missing", replacement), ErrNotFound)
}

func TestDeleteConversationClearsCurrent(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()
	sess := &Session{}

	id, err := store.SaveMessage(ctx, sess, Message{ID: 1, Text: "hello", IsUser: true})
	require.NoError(t, err)
	require.Equal(t, id, sess.CurrentConversationID)

	require.NoError(t, store.DeleteConversation(ctx, sess, id))
	assert.Empty(t, sess.CurrentConversationID)

	_, err = store.GetConversation(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteConversationKeepsUnrelatedCurrent(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	idA, err := store.CreateConversation(ctx, "A", nil)
	require.NoError(t, err)
	idB, err := store.CreateConversation(ctx, "B", nil)
	require.NoError(t, err)

	sess := &Session{CurrentConversationID: idA}
	require.NoError(t, store.DeleteConversation(ctx, sess, idB))
	assert.Equal(t, idA, sess.CurrentConversationID)
}

func TestClearAll(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()
	sess := &Session{}

	_, err := store.SaveMessage(ctx, sess, Message{ID: 1, Text: "hello", IsUser: true})
	require.NoError(t, err)

	require.NoError(t, store.ClearAll(ctx, sess))
	assert.Empty(t, sess.CurrentConversationID)

	conversations, err := store.ListConversations(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestOpenFallback(t *testing.T) {
	// A path whose parent directory does not exist cannot be opened; the
	// fallback store must still work, just without persistence.
	badPath := filepath.Join(t.TempDir(), "missing", "subdir", "history.db")

	store := OpenFallback(badPath)
	require.NotNil(t, store)

	id, err := store.CreateConversation(context.Background(), "t", nil)
	require.NoError(t, err)

	_, err = store.GetConversation(context.Background(), id)
	assert.NoError(t, err)
}
