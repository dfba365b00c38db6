// Package store is the per-profile key/value record store. Values are JSON
// documents; there are no transactions and no schema versioning.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uclf/legal-aid-portal/pkg/models"
)

// Keys used by the portal. One key per collection.
const (
	KeyUser          = "uclf_user"
	KeyChats         = "uclf_ai_chats"
	KeyActiveSession = "uclf_ai_active"
	KeyUsage         = "uclf_ai_usage"
)

// PrivacyKey is the per-tier directory privacy key, e.g. uclf_privacy_full_member.
func PrivacyKey(tier models.Role) string {
	return "uclf_privacy_" + tier.Slug()
}

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("record not found")

// Store is a key -> JSON string mapping scoped by profile.
type Store interface {
	Get(ctx context.Context, profileID, key string) (string, error)
	Set(ctx context.Context, profileID, key, value string) error
	Remove(ctx context.Context, profileID, key string) error
}

// GetJSON decodes the value under key into out. found is false when the key is empty.
func GetJSON(ctx context.Context, s Store, profileID, key string, out any) (found bool, err error) {
	raw, err := s.Get(ctx, profileID, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, profileID, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, profileID, key, string(b))
}

/* ============================== gorm store ============================== */

// GormStore keeps records in the `records` table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) Get(ctx context.Context, profileID, key string) (string, error) {
	var rec models.Record
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND record_key = ?", profileID, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

func (s *GormStore) Set(ctx context.Context, profileID, key, value string) error {
	rec := models.Record{ProfileID: profileID, Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_id"}, {Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

func (s *GormStore) Remove(ctx context.Context, profileID, key string) error {
	return s.db.WithContext(ctx).
		Where("profile_id = ? AND record_key = ?", profileID, key).
		Delete(&models.Record{}).Error
}

/* ============================= memory store ============================= */

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, profileID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[profileID][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, profileID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[profileID] == nil {
		s.data[profileID] = make(map[string]string)
	}
	s.data[profileID][key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, profileID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[profileID], key)
	return nil
}
