// Package usage enforces the daily assistant quotas per tier.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uclf/legal-aid-portal/internal/store"
	"github.com/uclf/legal-aid-portal/pkg/metrics"
	"github.com/uclf/legal-aid-portal/pkg/models"
)

// Kind names the counter that blocked an action.
type Kind string

const (
	KindQuery  Kind = "query"
	KindUpload Kind = "upload"
)

// ErrQuotaExceeded is wrapped by every *QuotaError.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// QuotaError describes which limit was hit.
type QuotaError struct {
	Kind   Kind
	Tier   models.Role
	Limits Limits
	Usage  models.DailyUsage
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exceeded for %s", e.Kind, e.Tier)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Message is the user-facing explanation.
func (e *QuotaError) Message() string {
	if e.Kind == KindUpload {
		return fmt.Sprintf("Daily document upload limit reached (%d). Limits reset at midnight.", e.Limits.Uploads)
	}
	return fmt.Sprintf("Daily query limit reached (%d). Please come back tomorrow or login for higher limits.", e.Limits.Queries)
}

// Snapshot is the current day's usage next to the tier's limits.
type Snapshot struct {
	Usage         models.DailyUsage `json:"usage"`
	Limits        Limits            `json:"limits"`
	QueryReached  bool              `json:"queryLimitReached"`
	UploadReached bool              `json:"uploadLimitReached"`
	Upgrade       bool              `json:"upgrade"`
}

// Enforcer tracks DailyUsage per profile in the record store.
type Enforcer struct {
	store store.Store
	clock Clock
	loc   *time.Location
	locks store.Locks
}

// NewEnforcer builds an enforcer. A nil clock means the wall clock; a nil
// location means UTC.
func NewEnforcer(s store.Store, clock Clock, loc *time.Location) *Enforcer {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Enforcer{store: s, clock: clock, loc: loc}
}

// Today is the day key the enforcer currently counts against.
func (e *Enforcer) Today() string { return DayKey(e.clock.Now(), e.loc) }

// load returns today's usage, resetting and persisting when the stored date is stale.
// Caller holds the profile lock.
func (e *Enforcer) load(ctx context.Context, profileID string) (models.DailyUsage, error) {
	today := e.Today()
	var u models.DailyUsage
	found, err := store.GetJSON(ctx, e.store, profileID, store.KeyUsage, &u)
	if err != nil {
		return u, err
	}
	if found && u.Date == today {
		return u, nil
	}
	u = models.DailyUsage{Date: today}
	if err := store.SetJSON(ctx, e.store, profileID, store.KeyUsage, u); err != nil {
		return u, err
	}
	return u, nil
}

// Snapshot returns today's usage (after rollover) and the tier limits.
func (e *Enforcer) Snapshot(ctx context.Context, profileID string, tier models.Role) (Snapshot, error) {
	unlock := e.locks.Lock(profileID)
	defer unlock()

	u, err := e.load(ctx, profileID)
	if err != nil {
		return Snapshot{}, err
	}
	lim := LimitsFor(tier)
	return Snapshot{
		Usage:         u,
		Limits:        lim,
		QueryReached:  u.Queries >= lim.Queries,
		UploadReached: u.Uploads >= lim.Uploads,
		Upgrade:       CanUpgrade(tier),
	}, nil
}

// CheckUpload reports whether one more upload is allowed without counting it.
// Used when a file is selected, before any message is sent.
func (e *Enforcer) CheckUpload(ctx context.Context, profileID string, tier models.Role) error {
	unlock := e.locks.Lock(profileID)
	defer unlock()

	u, err := e.load(ctx, profileID)
	if err != nil {
		return err
	}
	return e.check(tier, u, false, true)
}

// CheckAndRecordQuery counts one query, or rejects without counting.
func (e *Enforcer) CheckAndRecordQuery(ctx context.Context, profileID string, tier models.Role) (models.DailyUsage, error) {
	return e.CheckAndRecord(ctx, profileID, tier, true, false)
}

// CheckAndRecordUpload counts one upload, or rejects without counting.
func (e *Enforcer) CheckAndRecordUpload(ctx context.Context, profileID string, tier models.Role) (models.DailyUsage, error) {
	return e.CheckAndRecord(ctx, profileID, tier, false, true)
}

// CheckAndRecord checks every requested counter first (upload before query)
// and records them together only when all pass. A rejected call changes nothing.
func (e *Enforcer) CheckAndRecord(ctx context.Context, profileID string, tier models.Role, query, upload bool) (models.DailyUsage, error) {
	unlock := e.locks.Lock(profileID)
	defer unlock()

	u, err := e.load(ctx, profileID)
	if err != nil {
		return u, err
	}
	if err := e.check(tier, u, query, upload); err != nil {
		return u, err
	}
	if query {
		u.Queries++
	}
	if upload {
		u.Uploads++
	}
	if err := store.SetJSON(ctx, e.store, profileID, store.KeyUsage, u); err != nil {
		return u, fmt.Errorf("persist usage: %w", err)
	}
	return u, nil
}

func (e *Enforcer) check(tier models.Role, u models.DailyUsage, query, upload bool) error {
	lim := LimitsFor(tier)
	if upload && u.Uploads >= lim.Uploads {
		metrics.QuotaRejectionsTotal.WithLabelValues(string(tier), string(KindUpload)).Inc()
		return &QuotaError{Kind: KindUpload, Tier: tier, Limits: lim, Usage: u}
	}
	if query && u.Queries >= lim.Queries {
		metrics.QuotaRejectionsTotal.WithLabelValues(string(tier), string(KindQuery)).Inc()
		return &QuotaError{Kind: KindQuery, Tier: tier, Limits: lim, Usage: u}
	}
	return nil
}
