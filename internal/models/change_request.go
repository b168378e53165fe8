package models

import "time"

type Status string

const (
	StatusDraft       Status = "draft"
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusImplemented Status = "implemented"
	StatusRolledBack  Status = "rolled_back"
)

// Statuses lists every change request status in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusImplemented,
	StatusRolledBack,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ChangeRequest tracks a proposed change through its approval lifecycle.
// CreatedByID is set once from the authenticated caller and never from
// client input. The lifecycle is advisory: any authorized update may move
// status to any value.
type ChangeRequest struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Reason            string     `gorm:"type:text;not null" json:"reason"`
	AffectedResources string     `gorm:"type:text;not null" json:"affectedResources"`
	AssigneeID        uint       `gorm:"not null;index" json:"assigneeId"`
	PRLink            *string    `gorm:"size:512" json:"prLink"`
	RollbackPlan      string     `gorm:"type:text;not null" json:"rollbackPlan"`
	Status            Status     `gorm:"size:20;not null;default:'draft';index" json:"status"`
	Priority          Priority   `gorm:"size:20;not null;default:'medium'" json:"priority"`
	CreatedByID       uint       `gorm:"not null;index" json:"createdById"`
	ScheduledDate     *time.Time `json:"scheduledDate"`
	ImplementedAt     *time.Time `json:"implementedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
