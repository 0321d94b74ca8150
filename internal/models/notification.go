package models

import "time"

// NotificationChannel identifies a delivery transport.
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "EMAIL"
	ChannelWhatsApp NotificationChannel = "WHATSAPP"
)

// NotificationStatus records the outcome of one delivery attempt.
type NotificationStatus string

const (
	NotificationSuccess NotificationStatus = "SUCCESS"
	NotificationFailed  NotificationStatus = "FAILED"
	NotificationSkipped NotificationStatus = "SKIPPED"
)

// NotificationAttempt is one append-only delivery-log row. Every attempt is
// recorded, including skips for unconfigured channels.
type NotificationAttempt struct {
	ID           string              `db:"id" json:"id"`
	RequestID    string              `db:"request_id" json:"request_id"`
	Channel      NotificationChannel `db:"channel" json:"channel"`
	Status       NotificationStatus  `db:"status" json:"status"`
	Recipient    string              `db:"recipient" json:"recipient"`
	ResponseCode *int                `db:"response_code" json:"response_code,omitempty"`
	ResponseBody string              `db:"response_body" json:"response_body"`
	Error        string              `db:"error" json:"error"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}

// SendResult reports a dispatch outcome to the workflow. Delivery failure is
// informational only and never blocks the triggering approval action.
type SendResult struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
	Error      string `json:"error,omitempty"`
}
