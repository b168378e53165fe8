package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/changedesk/changedesk/internal/dto"
	"github.com/changedesk/changedesk/internal/models"
	"github.com/changedesk/changedesk/internal/policy"
	"gorm.io/gorm"
)

var (
	ErrChangeRequestNotFound = errors.New("change request not found")
	ErrForbidden             = errors.New("only the assignee or an admin can update this change request")

	errTitleRequired        = errors.New("title is required")
	errReasonRequired       = errors.New("reason is required")
	errResourcesRequired    = errors.New("affected resources are required")
	errRollbackPlanRequired = errors.New("rollback plan is required")
	errAssigneeRequired     = errors.New("assignee is required")
	errInvalidStatus        = errors.New("invalid status")
	errInvalidPriority      = errors.New("invalid priority")
)

// ChangeRequestService is the store and lifecycle orchestration for
// change requests. Every write passes through here; authorization for
// updates is decided by the policy package against the loaded record.
type ChangeRequestService struct {
	db *gorm.DB
}

func NewChangeRequestService(db *gorm.DB) *ChangeRequestService {
	return &ChangeRequestService{db: db}
}

// Create inserts a new change request. The creator always comes from the
// authenticated caller context; any creator-like value in the payload is
// ignored.
func (s *ChangeRequestService) Create(creatorID uint, req *dto.CreateChangeRequestRequest) (*models.ChangeRequest, error) {
	status := req.Status
	if status == "" {
		status = models.StatusDraft
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	if err := validateChangeRequestInput(req.Title, req.Reason, req.AffectedResources, req.RollbackPlan, req.AssigneeID, status, priority); err != nil {
		return nil, err
	}

	cr := models.ChangeRequest{
		Title:             strings.TrimSpace(req.Title),
		Reason:            req.Reason,
		AffectedResources: req.AffectedResources,
		AssigneeID:        req.AssigneeID,
		PRLink:            req.PRLink,
		RollbackPlan:      req.RollbackPlan,
		Status:            status,
		Priority:          priority,
		CreatedByID:       creatorID,
		ScheduledDate:     req.ScheduledDate,
	}

	if err := s.db.Create(&cr).Error; err != nil {
		return nil, fmt.Errorf("failed to create change request: %w", err)
	}
	return &cr, nil
}

func (s *ChangeRequestService) GetByID(id uint) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	if err := s.db.First(&cr, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChangeRequestNotFound
		}
		return nil, err
	}
	return &cr, nil
}

func (s *ChangeRequestService) List() ([]models.ChangeRequest, error) {
	var crs []models.ChangeRequest
	if err := s.db.Order("id DESC").Find(&crs).Error; err != nil {
		return nil, err
	}
	return crs, nil
}

func (s *ChangeRequestService) ListRecent(limit int) ([]models.ChangeRequest, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	var crs []models.ChangeRequest
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&crs).Error; err != nil {
		return nil, err
	}
	return crs, nil
}

func (s *ChangeRequestService) ListByStatus(status models.Status) ([]models.ChangeRequest, error) {
	if !status.Valid() {
		return nil, errInvalidStatus
	}
	var crs []models.ChangeRequest
	if err := s.db.Where("status = ?", status).Order("id DESC").Find(&crs).Error; err != nil {
		return nil, err
	}
	return crs, nil
}

// Search matches title, reason, affected resources or the stringified id,
// case-insensitively.
func (s *ChangeRequestService) Search(term string) ([]models.ChangeRequest, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	var crs []models.ChangeRequest
	err := s.db.
		Where("LOWER(title) LIKE ? OR LOWER(reason) LIKE ? OR LOWER(affected_resources) LIKE ? OR CAST(id AS TEXT) LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("id DESC").
		Find(&crs).Error
	if err != nil {
		return nil, err
	}
	return crs, nil
}

// Update applies a partial update after the policy check. All supplied
// fields commit in a single statement or not at all. When the update
// moves status to implemented and no explicit timestamp is supplied,
// implemented_at is stamped server-side.
func (s *ChangeRequestService) Update(caller *policy.Identity, id uint, req *dto.UpdateChangeRequestRequest) (*models.ChangeRequest, error) {
	cr, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if !policy.CanUpdateChangeRequest(caller, cr) {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{}

	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return nil, errTitleRequired
		}
		updates["title"] = trimmed
	}
	if req.Reason != nil {
		if strings.TrimSpace(*req.Reason) == "" {
			return nil, errReasonRequired
		}
		updates["reason"] = *req.Reason
	}
	if req.AffectedResources != nil {
		if strings.TrimSpace(*req.AffectedResources) == "" {
			return nil, errResourcesRequired
		}
		updates["affected_resources"] = *req.AffectedResources
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == 0 {
			return nil, errAssigneeRequired
		}
		updates["assignee_id"] = *req.AssigneeID
	}
	if req.PRLink != nil {
		updates["pr_link"] = *req.PRLink
	}
	if req.RollbackPlan != nil {
		if strings.TrimSpace(*req.RollbackPlan) == "" {
			return nil, errRollbackPlanRequired
		}
		updates["rollback_plan"] = *req.RollbackPlan
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, errInvalidStatus
		}
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, errInvalidPriority
		}
		updates["priority"] = *req.Priority
	}
	if req.ScheduledDate != nil {
		updates["scheduled_date"] = *req.ScheduledDate
	}
	if req.ImplementedAt != nil {
		updates["implemented_at"] = *req.ImplementedAt
	} else if req.Status != nil && *req.Status == models.StatusImplemented && cr.Status != models.StatusImplemented {
		updates["implemented_at"] = time.Now()
	}

	if len(updates) == 0 {
		return cr, nil
	}

	result := s.db.Model(&models.ChangeRequest{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrChangeRequestNotFound
	}

	return s.GetByID(id)
}

// Stats returns the dashboard counters: total plus one count per status.
func (s *ChangeRequestService) Stats() (*dto.ChangeRequestStats, error) {
	var rows []struct {
		Status models.Status
		Count  int64
	}
	err := s.db.Model(&models.ChangeRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &dto.ChangeRequestStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.StatusDraft:
			stats.Draft = row.Count
		case models.StatusPending:
			stats.Pending = row.Count
		case models.StatusApproved:
			stats.Approved = row.Count
		case models.StatusRejected:
			stats.Rejected = row.Count
		case models.StatusImplemented:
			stats.Implemented = row.Count
		case models.StatusRolledBack:
			stats.RolledBack = row.Count
		}
	}
	return stats, nil
}

// PendingReviews is the notification feed: requests assigned to the
// caller that are pending or approved.
func (s *ChangeRequestService) PendingReviews(userID uint) ([]models.ChangeRequest, error) {
	var crs []models.ChangeRequest
	err := s.db.
		Where("assignee_id = ? AND status IN ?", userID, []models.Status{models.StatusPending, models.StatusApproved}).
		Order("id DESC").
		Find(&crs).Error
	if err != nil {
		return nil, err
	}
	return crs, nil
}

func validateChangeRequestInput(title, reason, resources, rollbackPlan string, assigneeID uint, status models.Status, priority models.Priority) error {
	if strings.TrimSpace(title) == "" {
		return errTitleRequired
	}
	if strings.TrimSpace(reason) == "" {
		return errReasonRequired
	}
	if strings.TrimSpace(resources) == "" {
		return errResourcesRequired
	}
	if strings.TrimSpace(rollbackPlan) == "" {
		return errRollbackPlanRequired
	}
	if assigneeID == 0 {
		return errAssigneeRequired
	}
	if !status.Valid() {
		return errInvalidStatus
	}
	if !priority.Valid() {
		return errInvalidPriority
	}
	return nil
}
