package services

import (
	"testing"
	"time"

	"github.com/changedesk/changedesk/internal/dto"
	"github.com/changedesk/changedesk/internal/models"
	"github.com/changedesk/changedesk/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCRService(t *testing.T) *ChangeRequestService {
	t.Helper()
	return NewChangeRequestService(newTestDB(t))
}

func validCreateRequest(assigneeID uint) *dto.CreateChangeRequestRequest {
	return &dto.CreateChangeRequestRequest{
		Title:             "Rotate TLS certificates",
		Reason:            "Certificates expire next month",
		AffectedResources: "api-gateway, load balancer",
		AssigneeID:        assigneeID,
		RollbackPlan:      "Re-deploy previous certificate bundle",
	}
}

func seedCR(t *testing.T, svc *ChangeRequestService, creatorID, assigneeID uint, status models.Status) *models.ChangeRequest {
	t.Helper()
	req := validCreateRequest(assigneeID)
	req.Status = status
	cr, err := svc.Create(creatorID, req)
	require.NoError(t, err)
	return cr
}

func asUser(id uint) *policy.Identity {
	return &policy.Identity{UserID: id, Role: models.RoleUser}
}

func asAdmin(id uint) *policy.Identity {
	return &policy.Identity{UserID: id, Role: models.RoleAdmin}
}

func strPtr(s string) *string { return &s }

func TestCreateForcesCreatorFromCaller(t *testing.T) {
	svc := newTestCRService(t)

	cr, err := svc.Create(7, validCreateRequest(3))
	require.NoError(t, err)

	assert.Equal(t, uint(7), cr.CreatedByID)
	assert.Equal(t, uint(3), cr.AssigneeID)
	assert.Equal(t, models.StatusDraft, cr.Status)
	assert.Equal(t, models.PriorityMedium, cr.Priority)
	assert.NotZero(t, cr.ID)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestCRService(t)

	tests := []struct {
		name   string
		mutate func(*dto.CreateChangeRequestRequest)
	}{
		{"empty title", func(r *dto.CreateChangeRequestRequest) { r.Title = "  " }},
		{"empty reason", func(r *dto.CreateChangeRequestRequest) { r.Reason = "" }},
		{"empty resources", func(r *dto.CreateChangeRequestRequest) { r.AffectedResources = "" }},
		{"empty rollback plan", func(r *dto.CreateChangeRequestRequest) { r.RollbackPlan = "" }},
		{"missing assignee", func(r *dto.CreateChangeRequestRequest) { r.AssigneeID = 0 }},
		{"invalid status", func(r *dto.CreateChangeRequestRequest) { r.Status = "archived" }},
		{"invalid priority", func(r *dto.CreateChangeRequestRequest) { r.Priority = "urgent" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest(3)
			tt.mutate(req)
			_, err := svc.Create(1, req)
			assert.Error(t, err)
		})
	}
}

func TestStatsPartitionList(t *testing.T) {
	svc := newTestCRService(t)

	seedCR(t, svc, 1, 2, models.StatusDraft)
	seedCR(t, svc, 1, 2, models.StatusPending)
	seedCR(t, svc, 1, 2, models.StatusPending)
	seedCR(t, svc, 1, 2, models.StatusApproved)
	seedCR(t, svc, 1, 2, models.StatusRejected)
	seedCR(t, svc, 1, 2, models.StatusImplemented)
	seedCR(t, svc, 1, 2, models.StatusRolledBack)

	stats, err := svc.Stats()
	require.NoError(t, err)

	all, err := svc.List()
	require.NoError(t, err)

	assert.Equal(t, int64(len(all)), stats.Total)
	perStatus := stats.Draft + stats.Pending + stats.Approved +
		stats.Rejected + stats.Implemented + stats.RolledBack
	assert.Equal(t, stats.Total, perStatus)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.Draft)
}

func TestPendingReviewsExactMembership(t *testing.T) {
	svc := newTestCRService(t)

	const alice, bob = uint(1), uint(2)
	var wantForAlice []uint

	// All six statuses for both assignees; only pending and approved
	// assigned to alice belong in her feed.
	for _, status := range models.Statuses {
		forAlice := seedCR(t, svc, bob, alice, status)
		seedCR(t, svc, alice, bob, status)
		if status == models.StatusPending || status == models.StatusApproved {
			wantForAlice = append(wantForAlice, forAlice.ID)
		}
	}

	reviews, err := svc.PendingReviews(alice)
	require.NoError(t, err)

	var got []uint
	for _, cr := range reviews {
		assert.Equal(t, alice, cr.AssigneeID)
		got = append(got, cr.ID)
	}
	assert.ElementsMatch(t, wantForAlice, got)
}

func TestUpdateForbiddenLeavesRecordUnchanged(t *testing.T) {
	svc := newTestCRService(t)
	cr := seedCR(t, svc, 1, 2, models.StatusDraft)

	status := models.StatusApproved
	_, err := svc.Update(asUser(3), cr.ID, &dto.UpdateChangeRequestRequest{
		Status: &status,
		Title:  strPtr("Hijacked"),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	reloaded, err := svc.GetByID(cr.ID)
	require.NoError(t, err)
	assert.Equal(t, cr.Title, reloaded.Title)
	assert.Equal(t, models.StatusDraft, reloaded.Status)
}

func TestUpdateCreatorCannotSelfApprove(t *testing.T) {
	svc := newTestCRService(t)
	cr := seedCR(t, svc, 1, 2, models.StatusPending)

	status := models.StatusApproved
	_, err := svc.Update(asUser(1), cr.ID, &dto.UpdateChangeRequestRequest{Status: &status})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestApprovalScenario(t *testing.T) {
	svc := newTestCRService(t)

	// alice (user, id 1) creates a request assigned to bob (admin, id 2).
	cr := seedCR(t, svc, 1, 2, models.StatusDraft)

	status := models.StatusApproved
	_, err := svc.Update(asUser(1), cr.ID, &dto.UpdateChangeRequestRequest{Status: &status})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(asAdmin(2), cr.ID, &dto.UpdateChangeRequestRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Approved)
	assert.Zero(t, stats.Draft)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Rejected)
	assert.Zero(t, stats.Implemented)
	assert.Zero(t, stats.RolledBack)
}

func TestUpdatePartialKeepsOtherFields(t *testing.T) {
	svc := newTestCRService(t)
	cr := seedCR(t, svc, 1, 2, models.StatusDraft)

	updated, err := svc.Update(asUser(2), cr.ID, &dto.UpdateChangeRequestRequest{
		Title:  strPtr("Rotate TLS certificates (staging first)"),
		PRLink: strPtr("https://example.com/pr/42"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Rotate TLS certificates (staging first)", updated.Title)
	require.NotNil(t, updated.PRLink)
	assert.Equal(t, "https://example.com/pr/42", *updated.PRLink)
	assert.Equal(t, cr.Reason, updated.Reason)
	assert.Equal(t, cr.RollbackPlan, updated.RollbackPlan)
	assert.Equal(t, cr.CreatedByID, updated.CreatedByID)
	assert.Equal(t, models.StatusDraft, updated.Status)
}

func TestUpdateNotFound(t *testing.T) {
	svc := newTestCRService(t)

	_, err := svc.Update(asAdmin(1), 9999, &dto.UpdateChangeRequestRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrChangeRequestNotFound)
}

func TestUpdateRejectsInvalidEnum(t *testing.T) {
	svc := newTestCRService(t)
	cr := seedCR(t, svc, 1, 2, models.StatusDraft)

	badStatus := models.Status("archived")
	_, err := svc.Update(asUser(2), cr.ID, &dto.UpdateChangeRequestRequest{Status: &badStatus})
	assert.Error(t, err)

	badPriority := models.Priority("urgent")
	_, err = svc.Update(asUser(2), cr.ID, &dto.UpdateChangeRequestRequest{Priority: &badPriority})
	assert.Error(t, err)
}

func TestUpdateStampsImplementedAt(t *testing.T) {
	svc := newTestCRService(t)
	cr := seedCR(t, svc, 1, 2, models.StatusApproved)
	require.Nil(t, cr.ImplementedAt)

	status := models.StatusImplemented
	updated, err := svc.Update(asUser(2), cr.ID, &dto.UpdateChangeRequestRequest{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, updated.ImplementedAt)
	assert.WithinDuration(t, time.Now(), *updated.ImplementedAt, time.Minute)

	// An explicit timestamp wins over the server stamp.
	other := seedCR(t, svc, 1, 2, models.StatusApproved)
	backdated := time.Now().Add(-72 * time.Hour).Truncate(time.Second)
	updated, err = svc.Update(asUser(2), other.ID, &dto.UpdateChangeRequestRequest{
		Status:        &status,
		ImplementedAt: &backdated,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ImplementedAt)
	assert.True(t, updated.ImplementedAt.Equal(backdated))
}

func TestUpdateKeepsImplementedAtOnOtherTransitions(t *testing.T) {
	svc := newTestCRService(t)
	cr := seedCR(t, svc, 1, 2, models.StatusApproved)

	implemented := models.StatusImplemented
	updated, err := svc.Update(asUser(2), cr.ID, &dto.UpdateChangeRequestRequest{Status: &implemented})
	require.NoError(t, err)
	require.NotNil(t, updated.ImplementedAt)
	stamped := *updated.ImplementedAt

	rolledBack := models.StatusRolledBack
	updated, err = svc.Update(asUser(2), cr.ID, &dto.UpdateChangeRequestRequest{Status: &rolledBack})
	require.NoError(t, err)
	require.NotNil(t, updated.ImplementedAt)
	assert.True(t, updated.ImplementedAt.Equal(stamped))
}

func TestSearchMatchesExpectedFields(t *testing.T) {
	svc := newTestCRService(t)

	first, err := svc.Create(1, &dto.CreateChangeRequestRequest{
		Title:             "Upgrade PostgreSQL cluster",
		Reason:            "End of life version",
		AffectedResources: "db-primary, db-replica",
		AssigneeID:        2,
		RollbackPlan:      "Restore from snapshot",
	})
	require.NoError(t, err)

	second, err := svc.Create(1, &dto.CreateChangeRequestRequest{
		Title:             "Tighten firewall rules",
		Reason:            "Audit finding about open ports",
		AffectedResources: "edge routers",
		AssigneeID:        2,
		RollbackPlan:      "Re-apply previous ruleset",
	})
	require.NoError(t, err)

	byTitle, err := svc.Search("postgresql")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, first.ID, byTitle[0].ID)

	byReason, err := svc.Search("AUDIT")
	require.NoError(t, err)
	require.Len(t, byReason, 1)
	assert.Equal(t, second.ID, byReason[0].ID)

	byResources, err := svc.Search("db-replica")
	require.NoError(t, err)
	require.Len(t, byResources, 1)
	assert.Equal(t, first.ID, byResources[0].ID)

	byID, err := svc.Search("2")
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, second.ID, byID[0].ID)

	none, err := svc.Search("kubernetes")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListOrderAndRecentLimit(t *testing.T) {
	svc := newTestCRService(t)

	var ids []uint
	for i := 0; i < 5; i++ {
		cr := seedCR(t, svc, 1, 2, models.StatusDraft)
		// Spread creation times so the recency ordering is unambiguous.
		createdAt := time.Now().Add(time.Duration(i-10) * time.Minute)
		require.NoError(t, svc.db.Model(cr).Update("created_at", createdAt).Error)
		ids = append(ids, cr.ID)
	}

	all, err := svc.List()
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 0; i < len(all)-1; i++ {
		assert.Greater(t, all[i].ID, all[i+1].ID)
	}

	recent, err := svc.ListRecent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[4], recent[0].ID)
	assert.Equal(t, ids[3], recent[1].ID)
	assert.Equal(t, ids[2], recent[2].ID)

	// Out-of-range limits fall back to the default of 10.
	fallback, err := svc.ListRecent(0)
	require.NoError(t, err)
	assert.Len(t, fallback, 5)
}

func TestListByStatus(t *testing.T) {
	svc := newTestCRService(t)

	seedCR(t, svc, 1, 2, models.StatusPending)
	seedCR(t, svc, 1, 2, models.StatusPending)
	seedCR(t, svc, 1, 2, models.StatusDraft)

	pending, err := svc.ListByStatus(models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = svc.ListByStatus("archived")
	assert.Error(t, err)
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newTestCRService(t)

	_, err := svc.GetByID(42)
	assert.ErrorIs(t, err, ErrChangeRequestNotFound)
}
