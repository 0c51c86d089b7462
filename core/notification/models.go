package notification

import "time"

// Types
const (
	TypeEnrollment = "enrollment"
	TypeMaterial   = "material"
	TypeBlocked    = "blocked"
	TypeUnblocked  = "unblocked"
	TypeRemoved    = "removed"
	TypeAssignment = "assignment"
	TypeFeedback   = "feedback"
)

var AllTypes = []string{TypeEnrollment, TypeMaterial, TypeBlocked, TypeUnblocked, TypeRemoved, TypeAssignment, TypeFeedback}

type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"notification_type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	IsRead        bool      `json:"is_read"`
	RelatedUserID string    `json:"related_user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// NewNotification contains information needed to notify a user.
type NewNotification struct {
	UserID        string `validate:"required"`
	Type          string `validate:"required,oneof=enrollment material blocked unblocked removed assignment feedback"`
	Title         string `validate:"required,max=200"`
	Message       string `validate:"required"`
	RelatedUserID string
}
