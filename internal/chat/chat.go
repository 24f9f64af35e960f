// Package chat stores direct messages, including the call-log lines clients
// post when a call ends.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"listenlink/internal/calls"
)

const (
	KindText    = "text"
	KindCallLog = "call_log"

	maxContentRunes = 4000
	defaultLimit    = 50
	maxLimit        = 200
)

var ErrInvalidArgument = errors.New("chat: invalid argument")

type Message struct {
	ID          int64     `json:"id" db:"id"`
	SenderID    int64     `json:"sender_id" db:"sender_id"`
	RecipientID int64     `json:"recipient_id" db:"recipient_id"`
	Content     string    `json:"content" db:"content"`
	Kind        string    `json:"kind" db:"kind"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, m Message) (Message, error)
	// Thread returns up to limit of the latest messages between a and b, oldest first.
	Thread(ctx context.Context, a, b int64, limit int) ([]Message, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	clock  func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, clock: time.Now}
}

// Send stores a message. Call-log content is tagged so clients can render it
// as a call summary instead of a text bubble.
func (s *Service) Send(ctx context.Context, senderID, recipientID int64, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if senderID <= 0 || recipientID <= 0 || senderID == recipientID {
		return Message{}, ErrInvalidArgument
	}
	if content == "" || utf8.RuneCountInString(content) > maxContentRunes {
		return Message{}, ErrInvalidArgument
	}

	kind := KindText
	if _, ok := calls.ParseCallLog(content); ok {
		kind = KindCallLog
	}
	m, err := s.repo.Insert(ctx, Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		Kind:        kind,
		CreatedAt:   s.clock().UTC(),
	})
	if err != nil {
		return Message{}, err
	}
	s.logger.Debug("message stored", "message_id", m.ID, "sender_id", senderID, "recipient_id", recipientID, "kind", kind)
	return m, nil
}

// Thread returns the conversation between a and b, oldest first.
func (s *Service) Thread(ctx context.Context, a, b int64, limit int) ([]Message, error) {
	if a <= 0 || b <= 0 {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return s.repo.Thread(ctx, a, b, limit)
}
