package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/messaging-service/internal/domain"
)

// MessageRepository is the authoritative message store. Only this service
// writes messages.
type MessageRepository interface {
	Append(ctx context.Context, m *domain.Message) error
	GetThread(ctx context.Context, userID, otherID string) ([]*domain.Message, error)
	Edit(ctx context.Context, messageID, editorID, newContent string, now time.Time) (*domain.Message, error)
	ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error)
}

// Directory resolves a user id to its profile summary (external user-service).
type Directory interface {
	Lookup(ctx context.Context, userID string) (*domain.UserSummary, error)
}

type MessageService struct {
	repo MessageRepository
	dir  Directory
	log  *zap.SugaredLogger
}

func NewMessageService(repo MessageRepository, dir Directory, log *zap.SugaredLogger) *MessageService {
	return &MessageService{repo: repo, dir: dir, log: log}
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Content    string
	Type       string
	FileURL    string
	FileSize   int64
}

func (in *SendInput) validate() error {
	if in.SenderID == "" || in.ReceiverID == "" {
		return fmt.Errorf("%w: sender and receiver required", domain.ErrValidation)
	}
	if in.SenderID == in.ReceiverID {
		return fmt.Errorf("%w: cannot message yourself", domain.ErrValidation)
	}
	if in.Type == "" {
		in.Type = domain.TypeText
	}
	if !domain.ValidType(in.Type) {
		return fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, in.Type)
	}
	if in.Type == domain.TypeText {
		if strings.TrimSpace(in.Content) == "" {
			return fmt.Errorf("%w: content required", domain.ErrValidation)
		}
		if in.FileURL != "" {
			return fmt.Errorf("%w: text message cannot carry a file", domain.ErrValidation)
		}
		return nil
	}
	if in.FileURL == "" {
		return fmt.Errorf("%w: file required for %s message", domain.ErrValidation, in.Type)
	}
	return nil
}

// Send persists a new message. Nothing is emitted on the channel here; the
// delivery coordinator fans out only after this succeeds.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	m := &domain.Message{
		ID:         uuid.New().String(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		Type:       in.Type,
		FileURL:    in.FileURL,
		FileSize:   in.FileSize,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MessageService) Thread(ctx context.Context, userID, otherID string) ([]*domain.Message, error) {
	if otherID == "" {
		return nil, fmt.Errorf("%w: other user id required", domain.ErrValidation)
	}
	return s.repo.GetThread(ctx, userID, otherID)
}

// Edit changes content on an existing message. Only the original sender may
// edit; the ownership check runs against the stored record.
func (s *MessageService) Edit(ctx context.Context, messageID, editorID, newContent string) (*domain.Message, error) {
	if strings.TrimSpace(newContent) == "" {
		return nil, fmt.Errorf("%w: content required", domain.ErrValidation)
	}
	return s.repo.Edit(ctx, messageID, editorID, newContent, time.Now().UTC())
}

// Conversations projects the sidebar listing: one entry per counterpart,
// newest first, enriched with the directory profile. A failed lookup keeps
// the bare id rather than dropping the conversation.
func (s *MessageService) Conversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	convs, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		u, err := s.dir.Lookup(ctx, c.UserData.ID)
		if err != nil {
			s.log.Warnw("directory lookup failed", "user_id", c.UserData.ID, "err", err)
			continue
		}
		c.UserData = *u
	}
	return convs, nil
}
