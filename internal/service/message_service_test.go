package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/domain"
	"github.com/fathima-sithara/messaging-service/internal/repository"
)

type fakeDirectory struct {
	users map[string]*domain.UserSummary
}

func (d *fakeDirectory) Lookup(_ context.Context, userID string) (*domain.UserSummary, error) {
	if u, ok := d.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func newTestService(dir Directory) (*MessageService, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository()
	if dir == nil {
		dir = &fakeDirectory{users: map[string]*domain.UserSummary{}}
	}
	return NewMessageService(repo, dir, zap.NewNop().Sugar()), repo
}

func TestSendValidation(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SendInput
	}{
		{"missing receiver", SendInput{SenderID: "a", Content: "hi"}},
		{"self send", SendInput{SenderID: "a", ReceiverID: "a", Content: "hi"}},
		{"empty text content", SendInput{SenderID: "a", ReceiverID: "b", Content: "   "}},
		{"text with file", SendInput{SenderID: "a", ReceiverID: "b", Content: "hi", FileURL: "https://cdn/x"}},
		{"image without file", SendInput{SenderID: "a", ReceiverID: "b", Type: domain.TypeImage, Content: "pic"}},
		{"unknown type", SendInput{SenderID: "a", ReceiverID: "b", Type: "sticker", Content: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tc.in)
			assert.True(t, errors.Is(err, domain.ErrValidation), "want ErrValidation, got %v", err)
		})
	}
}

func TestSendThenThread(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, SendInput{SenderID: "a", ReceiverID: "b", Content: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Equal(t, domain.TypeText, msg.Type)
	assert.False(t, msg.Edited)

	thread, err := svc.Thread(ctx, "a", "b")
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, msg.ID, thread[0].ID)
	assert.Equal(t, "hi", thread[0].Content)

	// Both directions see the same thread.
	reverse, err := svc.Thread(ctx, "b", "a")
	require.NoError(t, err)
	require.Len(t, reverse, 1)
	assert.Equal(t, msg.ID, reverse[0].ID)
}

func TestThreadOrdering(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, content := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Append(ctx, &domain.Message{
			ID: content, SenderID: "a", ReceiverID: "b",
			Content: content, Type: domain.TypeText,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	thread, err := svc.Thread(ctx, "b", "a")
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, "first", thread[0].Content)
	assert.Equal(t, "third", thread[2].Content)
}

func TestEdit(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, SendInput{SenderID: "a", ReceiverID: "b", Content: "hi"})
	require.NoError(t, err)

	t.Run("by sender", func(t *testing.T) {
		edited, err := svc.Edit(ctx, msg.ID, "a", "hi!")
		require.NoError(t, err)
		assert.Equal(t, "hi!", edited.Content)
		assert.True(t, edited.Edited)
		require.NotNil(t, edited.EditedAt)
		assert.Equal(t, msg.Timestamp, edited.Timestamp)
	})

	t.Run("by non-owner leaves record unchanged", func(t *testing.T) {
		_, err := svc.Edit(ctx, msg.ID, "b", "hijacked")
		assert.True(t, errors.Is(err, domain.ErrForbidden))

		thread, err := svc.Thread(ctx, "a", "b")
		require.NoError(t, err)
		require.Len(t, thread, 1)
		assert.Equal(t, "hi!", thread[0].Content)
	})

	t.Run("unknown message", func(t *testing.T) {
		_, err := svc.Edit(ctx, "no-such-id", "a", "x")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := svc.Edit(ctx, msg.ID, "a", " ")
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}

func TestConversations(t *testing.T) {
	dir := &fakeDirectory{users: map[string]*domain.UserSummary{
		"b": {ID: "b", Username: "bella", ProfileImage: "https://cdn/b.png"},
		"c": {ID: "c", Username: "carl"},
	}}
	svc, _ := newTestService(dir)
	ctx := context.Background()

	_, err := svc.Send(ctx, SendInput{SenderID: "u", ReceiverID: "b", Content: "to b, old"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, SendInput{SenderID: "c", ReceiverID: "u", Content: "from c"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, SendInput{SenderID: "u", ReceiverID: "b", Content: "to b, latest"})
	require.NoError(t, err)

	convs, err := svc.Conversations(ctx, "u")
	require.NoError(t, err)
	require.Len(t, convs, 2)

	// b holds the most recent message overall, so b comes first.
	assert.Equal(t, "b", convs[0].UserData.ID)
	assert.Equal(t, "bella", convs[0].UserData.Username)
	assert.Equal(t, "to b, latest", convs[0].LastMessage.Content)
	assert.Equal(t, "c", convs[1].UserData.ID)
	assert.Equal(t, "carl", convs[1].UserData.Username)

	// Each lastMessage matches the true tail of its thread.
	for _, cv := range convs {
		thread, err := svc.Thread(ctx, "u", cv.UserData.ID)
		require.NoError(t, err)
		assert.Equal(t, thread[len(thread)-1].ID, cv.LastMessage.ID)
	}
}

func TestConversationsKeepsBareIDOnLookupMiss(t *testing.T) {
	svc, _ := newTestService(&fakeDirectory{users: map[string]*domain.UserSummary{}})
	ctx := context.Background()

	_, err := svc.Send(ctx, SendInput{SenderID: "u", ReceiverID: "ghost", Content: "hello"})
	require.NoError(t, err)

	convs, err := svc.Conversations(ctx, "u")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "ghost", convs[0].UserData.ID)
	assert.Empty(t, convs[0].UserData.Username)
}
