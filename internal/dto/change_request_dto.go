package dto

import (
	"time"

	"github.com/changedesk/changedesk/internal/models"
)

type CreateChangeRequestRequest struct {
	Title             string          `json:"title"`
	Reason            string          `json:"reason"`
	AffectedResources string          `json:"affectedResources"`
	AssigneeID        uint            `json:"assigneeId"`
	PRLink            *string         `json:"prLink"`
	RollbackPlan      string          `json:"rollbackPlan"`
	Status            models.Status   `json:"status"`
	Priority          models.Priority `json:"priority"`
	ScheduledDate     *time.Time      `json:"scheduledDate"`
}

// UpdateChangeRequestRequest is a partial update; nil fields keep their
// prior values.
type UpdateChangeRequestRequest struct {
	Title             *string          `json:"title"`
	Reason            *string          `json:"reason"`
	AffectedResources *string          `json:"affectedResources"`
	AssigneeID        *uint            `json:"assigneeId"`
	PRLink            *string          `json:"prLink"`
	RollbackPlan      *string          `json:"rollbackPlan"`
	Status            *models.Status   `json:"status"`
	Priority          *models.Priority `json:"priority"`
	ScheduledDate     *time.Time       `json:"scheduledDate"`
	ImplementedAt     *time.Time       `json:"implementedAt"`
}

// ChangeRequestStats mirrors the dashboard counters: Total always equals
// the sum of the six per-status counts.
type ChangeRequestStats struct {
	Total       int64 `json:"total"`
	Draft       int64 `json:"draft"`
	Pending     int64 `json:"pending"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
	Implemented int64 `json:"implemented"`
	RolledBack  int64 `json:"rolledBack"`
}
