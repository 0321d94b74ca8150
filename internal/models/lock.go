package models

import "time"

// LockKey identifies a mark-table lock row. TeachingAssignmentID is the
// preferred key; the legacy tuple applies when no assignment id exists.
type LockKey struct {
	TeachingAssignmentID *string        `json:"teaching_assignment_id,omitempty"`
	StaffID              string         `json:"staff_id"`
	SubjectCode          string         `json:"subject_code"`
	Assessment           AssessmentType `json:"assessment"`
	Section              string         `json:"section"`
	AcademicYear         string         `json:"academic_year"`
}

// MarkTableLock is the per-assignment lock row governing mark entry and
// mark-manager configuration. Derived booleans are recomputed from the
// window fields on every read and write; rows are created lazily.
type MarkTableLock struct {
	ID                       string         `db:"id" json:"id"`
	TeachingAssignmentID     *string        `db:"teaching_assignment_id" json:"teaching_assignment_id,omitempty"`
	StaffID                  string         `db:"staff_id" json:"staff_id"`
	SubjectCode              string         `db:"subject_code" json:"subject_code"`
	Assessment               AssessmentType `db:"assessment" json:"assessment"`
	Section                  string         `db:"section" json:"section"`
	AcademicYear             string         `db:"academic_year" json:"academic_year"`
	IsPublished              bool           `db:"is_published" json:"is_published"`
	PublishedBlocked         bool           `db:"published_blocked" json:"published_blocked"`
	MarkEntryBlocked         bool           `db:"mark_entry_blocked" json:"mark_entry_blocked"`
	MarkManagerLocked        bool           `db:"mark_manager_locked" json:"mark_manager_locked"`
	MarkEntryUnblockedUntil  *time.Time     `db:"mark_entry_unblocked_until" json:"mark_entry_unblocked_until,omitempty"`
	MarkManagerUnlockedUntil *time.Time     `db:"mark_manager_unlocked_until" json:"mark_manager_unlocked_until,omitempty"`
	UpdatedAt                time.Time      `db:"updated_at" json:"updated_at"`
}

// MarkEntryOpen reports whether staff can currently enter marks: the manager
// configuration must be confirmed and no entry-level block may be active.
func (l *MarkTableLock) MarkEntryOpen() bool {
	return !l.MarkEntryBlocked && l.MarkManagerLocked
}

// Key extracts the natural key of the lock row.
func (l *MarkTableLock) Key() LockKey {
	return LockKey{
		TeachingAssignmentID: l.TeachingAssignmentID,
		StaffID:              l.StaffID,
		SubjectCode:          l.SubjectCode,
		Assessment:           l.Assessment,
		Section:              l.Section,
		AcademicYear:         l.AcademicYear,
	}
}

// LockStatus is the recomputed view returned to clients.
type LockStatus struct {
	Lock          MarkTableLock `json:"lock"`
	MarkEntryOpen bool          `json:"mark_entry_open"`
	CheckedAt     time.Time     `json:"checked_at"`
}
