package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceMirror keeps online/last_seen status in redis for profile display.
// It is a mirror only: event routing always goes through the in-process hub,
// never through redis.
type PresenceMirror struct {
	client *redis.Client
	prefix string
}

type presenceDoc struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewPresenceMirror(client *redis.Client, prefix string) *PresenceMirror {
	return &PresenceMirror{client: client, prefix: prefix}
}

func (p *PresenceMirror) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", p.prefix, userID)
}

func (p *PresenceMirror) SetOnline(ctx context.Context, userID string) error {
	return p.set(ctx, userID, "online")
}

func (p *PresenceMirror) SetOffline(ctx context.Context, userID string) error {
	return p.set(ctx, userID, "offline")
}

func (p *PresenceMirror) set(ctx context.Context, userID, status string) error {
	b, _ := json.Marshal(presenceDoc{Status: status, LastSeen: time.Now().Unix()})
	return p.client.Set(ctx, p.key(userID), b, 24*time.Hour).Err()
}

func (p *PresenceMirror) Status(ctx context.Context, userID string) (string, error) {
	b, err := p.client.Get(ctx, p.key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	var doc presenceDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", err
	}
	return doc.Status, nil
}
