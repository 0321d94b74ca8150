package models

import "time"

// ResetNotification is the one-shot notice created when oversight resets a
// published assessment. Rows are never deleted; the pending view filters on
// IsRead.
type ResetNotification struct {
	ID                   string         `db:"id" json:"id"`
	TeachingAssignmentID string         `db:"teaching_assignment_id" json:"teaching_assignment_id"`
	Assessment           AssessmentType `db:"assessment" json:"assessment"`
	OwnerID              string         `db:"owner_id" json:"owner_id"`
	ResetBy              string         `db:"reset_by" json:"reset_by"`
	ResetAt              time.Time      `db:"reset_at" json:"reset_at"`
	IsRead               bool           `db:"is_read" json:"is_read"`
	ReadAt               *time.Time     `db:"read_at" json:"read_at,omitempty"`
}
