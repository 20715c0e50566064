package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/questtoken/cache"
)

// ErrNoToken is returned by Store.Load when nothing is stored for a token id.
var ErrNoToken = errors.New("token: not found")

const keyPrefix = "token:"

// Store persists attachments as cache hashes keyed "token:<tokenID>".
type Store struct {
	c cache.Cache
}

// NewStore wraps c.
func NewStore(c cache.Cache) *Store {
	return &Store{c: c}
}

func storeKey(tokenID string) string { return keyPrefix + tokenID }

// Save replaces the stored attachment for tokenID with att.
func (s *Store) Save(ctx context.Context, tokenID string, att MapAttachment) error {
	if err := s.c.HReplace(ctx, storeKey(tokenID), att); err != nil {
		return fmt.Errorf("token: save %s: %w", tokenID, err)
	}
	return nil
}

// Load returns the stored attachment for tokenID.
func (s *Store) Load(ctx context.Context, tokenID string) (MapAttachment, error) {
	fields, err := s.c.HGetAll(ctx, storeKey(tokenID))
	if err != nil {
		return nil, fmt.Errorf("token: load %s: %w", tokenID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNoToken
	}
	return MapAttachment(fields), nil
}

// Delete removes the attachment for tokenID.
func (s *Store) Delete(ctx context.Context, tokenID string) error {
	return s.c.Del(ctx, storeKey(tokenID))
}
