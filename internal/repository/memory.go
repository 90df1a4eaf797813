package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fathima-sithara/messaging-service/internal/domain"
)

// MemoryRepository keeps messages in process memory. Used for tests and
// local development; mirrors the Mongo repository's contracts, including
// the authoritative owner check on edit.
type MemoryRepository struct {
	mu   sync.Mutex
	msgs []*domain.Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.msgs = append(r.msgs, &cp)
	return nil
}

func (r *MemoryRepository) GetThread(_ context.Context, userID, otherID string) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Message{}
	for _, m := range r.msgs {
		if (m.SenderID == userID && m.ReceiverID == otherID) ||
			(m.SenderID == otherID && m.ReceiverID == userID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	// Insertion order breaks timestamp ties; SliceStable preserves it.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *MemoryRepository) Edit(_ context.Context, messageID, editorID, newContent string, now time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID != messageID {
			continue
		}
		if m.SenderID != editorID {
			return nil, domain.ErrForbidden
		}
		m.Content = newContent
		m.Edited = true
		at := now
		m.EditedAt = &at
		cp := *m
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryRepository) ListConversations(_ context.Context, userID string) ([]*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last := map[string]*domain.Message{}
	for _, m := range r.msgs {
		var counterpart string
		switch userID {
		case m.SenderID:
			counterpart = m.ReceiverID
		case m.ReceiverID:
			counterpart = m.SenderID
		default:
			continue
		}
		prev, ok := last[counterpart]
		if !ok || !m.Timestamp.Before(prev.Timestamp) {
			cp := *m
			last[counterpart] = &cp
		}
	}

	out := make([]*domain.Conversation, 0, len(last))
	for counterpart, m := range last {
		out = append(out, &domain.Conversation{
			UserData:    domain.UserSummary{ID: counterpart},
			LastMessage: m,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.Timestamp.After(out[j].LastMessage.Timestamp)
	})
	return out, nil
}
