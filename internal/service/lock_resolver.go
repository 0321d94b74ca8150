package service

import (
	"time"

	"github.com/obeplatform/assessment-api/internal/models"
)

// ResolverPolicy names the lock-derivation policy choices.
type ResolverPolicy struct {
	// StickyManagerLock keeps the mark-manager lock set across
	// recomputations once it has latched, regardless of is_published,
	// unless an unlock window covers the evaluation instant. When false
	// the manager lock re-derives from is_published the same way the
	// entry lock does.
	StickyManagerLock bool
}

// DefaultResolverPolicy reproduces the production behaviour: sticky manager
// lock, window-derived entry lock.
func DefaultResolverPolicy() ResolverPolicy {
	return ResolverPolicy{StickyManagerLock: true}
}

// LockResolver derives the blocked/locked booleans of a lock row from its
// window fields at one instant. Recompute is pure and idempotent; callers
// must capture now once and pass the same instant for every decision made in
// a single operation.
type LockResolver struct {
	policy ResolverPolicy
}

// NewLockResolver builds a resolver with the given policy.
func NewLockResolver(policy ResolverPolicy) *LockResolver {
	return &LockResolver{policy: policy}
}

// Recompute returns a copy of the lock with derived fields set for now.
// There is no scheduled re-locking job: expiry takes effect because every
// read and write path runs this before surfacing a decision.
func (r *LockResolver) Recompute(lock models.MarkTableLock, now time.Time) models.MarkTableLock {
	entryWindowActive := lock.MarkEntryUnblockedUntil != nil && lock.MarkEntryUnblockedUntil.After(now)
	managerWindowActive := lock.MarkManagerUnlockedUntil != nil && lock.MarkManagerUnlockedUntil.After(now)

	lock.PublishedBlocked = lock.IsPublished
	lock.MarkEntryBlocked = lock.IsPublished && !entryWindowActive

	if managerWindowActive {
		lock.MarkManagerLocked = false
	} else if r.policy.StickyManagerLock {
		// Latched: the previous value survives recomputation.
		lock.MarkManagerLocked = lock.IsPublished || lock.MarkManagerLocked
	} else {
		lock.MarkManagerLocked = lock.IsPublished
	}

	return lock
}

// Changed reports whether recomputation altered any derived field, so write
// paths can skip a no-op save.
func Changed(before, after models.MarkTableLock) bool {
	return before.PublishedBlocked != after.PublishedBlocked ||
		before.MarkEntryBlocked != after.MarkEntryBlocked ||
		before.MarkManagerLocked != after.MarkManagerLocked
}
