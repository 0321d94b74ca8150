package models

import "time"

// ApprovalKind tags the exception variant a request belongs to.
type ApprovalKind string

const (
	// KindPublishException asks to publish past the due date.
	KindPublishException ApprovalKind = "PUBLISH_EXCEPTION"
	// KindEditException asks to reopen mark entry or the mark manager.
	KindEditException ApprovalKind = "EDIT_EXCEPTION"
	// KindCourseEditException is the special-course edit variant; its grant
	// is single-use and its status is mirrored into the general queue.
	KindCourseEditException ApprovalKind = "COURSE_EDIT_EXCEPTION"
)

// ApprovalKindSpec configures per-kind workflow behaviour.
type ApprovalKindSpec struct {
	// SingleUse grants are revoked by the first Consume even while the
	// approval window is still open.
	SingleUse bool
	// Mirrored kinds propagate status changes into the general queue
	// through the outbox.
	Mirrored bool
	// RequiresDepartment routes the request through the departmental
	// pre-approval sub-chain before oversight sees it.
	RequiresDepartment bool
}

// KindSpec returns the workflow configuration for a kind.
func KindSpec(kind ApprovalKind) ApprovalKindSpec {
	switch kind {
	case KindCourseEditException:
		return ApprovalKindSpec{SingleUse: true, Mirrored: true, RequiresDepartment: true}
	case KindEditException:
		return ApprovalKindSpec{RequiresDepartment: true}
	default:
		return ApprovalKindSpec{}
	}
}

// ApprovalScope narrows an edit exception to one of the two lock surfaces.
type ApprovalScope string

const (
	ScopeMarkEntry   ApprovalScope = "MARK_ENTRY"
	ScopeMarkManager ApprovalScope = "MARK_MANAGER"
)

// ApprovalStatus is the main-chain state of a request.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// ApprovalRequest is an append-only exception request. Multiple rows may
// coexist for the same key; the most recently created row is authoritative
// for current access and older rows remain as history.
type ApprovalRequest struct {
	ID          string         `db:"id" json:"id"`
	Kind        ApprovalKind   `db:"kind" json:"kind"`
	RequesterID string         `db:"requester_id" json:"requester_id"`
	SubjectCode string         `db:"subject_code" json:"subject_code"`
	Assessment  AssessmentType `db:"assessment" json:"assessment"`
	Scope       *ApprovalScope `db:"scope" json:"scope,omitempty"`
	Section     string         `db:"section" json:"section"`
	Semester    string         `db:"semester" json:"semester"`
	Reason      string         `db:"reason" json:"reason"`
	Status      ApprovalStatus `db:"status" json:"status"`
	RequestedAt time.Time      `db:"requested_at" json:"requested_at"`

	// ApprovedUntil is non-nil only while Status is APPROVED.
	ApprovedUntil *time.Time `db:"approved_until" json:"approved_until,omitempty"`
	ReviewedBy    *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ConsumedAt    *time.Time `db:"consumed_at" json:"consumed_at,omitempty"`

	// Departmental pre-approval sub-chain. DepartmentApproved defaults true
	// so rows created before the sub-chain existed stay visible to oversight.
	DepartmentReviewerID *string    `db:"department_reviewer_id" json:"department_reviewer_id,omitempty"`
	DepartmentApproved   bool       `db:"department_approved" json:"department_approved"`
	DepartmentReviewedBy *string    `db:"department_reviewed_by" json:"department_reviewed_by,omitempty"`
	DepartmentReviewedAt *time.Time `db:"department_reviewed_at" json:"department_reviewed_at,omitempty"`
}

// ApprovalKey is the logical identity used when the newest row wins.
type ApprovalKey struct {
	RequesterID string
	SubjectCode string
	Assessment  AssessmentType
	Scope       *ApprovalScope
	Kind        ApprovalKind
}

// Key extracts the logical identity of a request.
func (r *ApprovalRequest) Key() ApprovalKey {
	return ApprovalKey{
		RequesterID: r.RequesterID,
		SubjectCode: r.SubjectCode,
		Assessment:  r.Assessment,
		Scope:       r.Scope,
		Kind:        r.Kind,
	}
}

// ApprovalOutbox is the durable propagation record mirroring special-variant
// status changes into the general queue. Processing is at-least-once; the
// mirror upsert is idempotent on (origin request, key).
type ApprovalOutbox struct {
	ID          string         `db:"id" json:"id"`
	RequestID   string         `db:"request_id" json:"request_id"`
	Kind        ApprovalKind   `db:"kind" json:"kind"`
	RequesterID string         `db:"requester_id" json:"requester_id"`
	SubjectCode string         `db:"subject_code" json:"subject_code"`
	Assessment  AssessmentType `db:"assessment" json:"assessment"`
	Scope       *ApprovalScope `db:"scope" json:"scope,omitempty"`
	Status      ApprovalStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time     `db:"processed_at" json:"processed_at,omitempty"`
}

// ApprovalFilter scopes pending/history listings.
type ApprovalFilter struct {
	Kind        ApprovalKind
	RequesterID string
	SubjectCode string
	Semester    string
	Page        int
	PageSize    int
}
