package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// ConversationBacking is the persistent store behind ConversationStore.
type ConversationBacking interface {
	GetThreadID(ctx context.Context, userID string) (string, error)
	CreateThread(ctx context.Context, userID, threadID string) error
	GetTranscriptSharing(ctx context.Context, userID string) (bool, error)
	SetTranscriptSharing(ctx context.Context, userID string, enabled bool) error
}

// ConversationStore is a read-through, write-through cache in front of the
// user thread and preference tables. Misses and errors are never cached.
type ConversationStore struct {
	backing ConversationBacking
	cache   *Tiered
}

var _ ConversationBacking = (*ConversationStore)(nil)

func NewConversationStore(backing ConversationBacking, cache *Tiered) *ConversationStore {
	return &ConversationStore{backing: backing, cache: cache}
}

func (s *ConversationStore) GetThreadID(ctx context.Context, userID string) (string, error) {
	key := userKey("thread", userID)
	if threadID, ok := s.cache.Get(ctx, key); ok {
		return threadID, nil
	}

	threadID, err := s.backing.GetThreadID(ctx, userID)
	if err != nil {
		return "", err
	}
	s.cache.Set(ctx, key, threadID)
	return threadID, nil
}

func (s *ConversationStore) CreateThread(ctx context.Context, userID, threadID string) error {
	if err := s.backing.CreateThread(ctx, userID, threadID); err != nil {
		s.cache.Delete(ctx, userKey("thread", userID))
		return err
	}
	s.cache.Set(ctx, userKey("thread", userID), threadID)
	return nil
}

// GetTranscriptSharing reads the flag through the shared layer only, so an
// opt-out on one instance stops event publishing on all of them at once.
func (s *ConversationStore) GetTranscriptSharing(ctx context.Context, userID string) (bool, error) {
	key := userKey("sharing", userID)
	if value, ok := s.cache.GetShared(ctx, key); ok {
		return value == "1", nil
	}

	enabled, err := s.backing.GetTranscriptSharing(ctx, userID)
	if err != nil {
		return false, err
	}
	s.cache.SetShared(ctx, key, flagValue(enabled))
	return enabled, nil
}

func (s *ConversationStore) SetTranscriptSharing(ctx context.Context, userID string, enabled bool) error {
	key := userKey("sharing", userID)
	if err := s.backing.SetTranscriptSharing(ctx, userID, enabled); err != nil {
		s.cache.Delete(ctx, key)
		return err
	}
	s.cache.SetShared(ctx, key, flagValue(enabled))
	return nil
}

// userKey hashes the user id so addresses never appear in shared cache keys.
func userKey(kind, userID string) string {
	h := sha256.Sum256([]byte(userID))
	return kind + ":" + hex.EncodeToString(h[:])[:16]
}

func flagValue(enabled bool) string {
	if enabled {
		return "1"
	}
	return "0"
}
