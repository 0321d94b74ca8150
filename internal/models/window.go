package models

import "time"

// DueSchedule fixes the publish due date for a subject's assessment within a
// semester. Past-due publishing requires an approved exception.
type DueSchedule struct {
	ID          string         `db:"id" json:"id"`
	Semester    string         `db:"semester" json:"semester"`
	SubjectCode string         `db:"subject_code" json:"subject_code"`
	Assessment  AssessmentType `db:"assessment" json:"assessment"`
	DueAt       time.Time      `db:"due_at" json:"due_at"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AssessmentControl gates page visibility and coarse editability for a
// subject's assessment, independent of the due-date schedule.
type AssessmentControl struct {
	ID          string         `db:"id" json:"id"`
	Semester    string         `db:"semester" json:"semester"`
	SubjectCode string         `db:"subject_code" json:"subject_code"`
	Assessment  AssessmentType `db:"assessment" json:"assessment"`
	IsEnabled   bool           `db:"is_enabled" json:"is_enabled"`
	IsOpen      bool           `db:"is_open" json:"is_open"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// GlobalPublishControl is the semester-wide override. When a row exists it
// wins over due schedules and individual approvals alike.
type GlobalPublishControl struct {
	ID         string         `db:"id" json:"id"`
	Semester   string         `db:"semester" json:"semester"`
	Assessment AssessmentType `db:"assessment" json:"assessment"`
	IsOpen     bool           `db:"is_open" json:"is_open"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Decision layer identifiers surfaced in WindowDecision.Reason.
const (
	ReasonGlobalControl     = "global-control"
	ReasonDueSchedule       = "due-schedule"
	ReasonApprovedException = "approved-exception"
	ReasonNoSchedule        = "no-schedule"
)

// WindowDecision is the combined publish/edit decision for one
// (semester, subject, assessment) at one instant.
type WindowDecision struct {
	Enabled    bool      `json:"enabled"`
	Open       bool      `json:"open"`
	MayPublish bool      `json:"may_publish"`
	Reason     string    `json:"reason"`
	CheckedAt  time.Time `json:"checked_at"`
}
