package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehner/gymclub-api/internal/models"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

const testGroupID = "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"

type mockUserRepo struct {
	items    map[string]*models.User
	approved []string
	rejected []string
	assigns  []*models.GroupAthlete
	logs     []*models.AuditLog
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.items[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var rows []models.User
	for _, u := range m.items {
		if filter.Approval != nil && u.ApprovalState != *filter.Approval {
			continue
		}
		rows = append(rows, *u)
	}
	return rows, len(rows), nil
}

func (m *mockUserRepo) Approve(ctx context.Context, userID string, assign *models.GroupAthlete, log *models.AuditLog) error {
	m.approved = append(m.approved, userID)
	if assign != nil {
		m.assigns = append(m.assigns, assign)
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockUserRepo) Reject(ctx context.Context, userID, reason string, log *models.AuditLog) error {
	m.rejected = append(m.rejected, userID)
	m.logs = append(m.logs, log)
	return nil
}

type mockGroupReader struct {
	groups   map[string]*models.TrainingGroup
	conflict *models.GroupAssignmentConflict
}

func (m *mockGroupReader) FindGroupByID(ctx context.Context, id string) (*models.TrainingGroup, error) {
	if g, ok := m.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGroupReader) FindAthleteConflict(ctx context.Context, trainingID, athleteID string) (*models.GroupAssignmentConflict, error) {
	return m.conflict, nil
}

type mockApprovalNotifier struct {
	decisions []bool
}

func (m *mockApprovalNotifier) ApprovalDecision(ctx context.Context, user *models.User, approved bool, reason string) {
	m.decisions = append(m.decisions, approved)
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestUserApprove(t *testing.T) {
	repo := &mockUserRepo{items: map[string]*models.User{
		testAthleteID: {ID: testAthleteID, Role: models.RoleAthlete, ApprovalState: models.ApprovalPending},
	}}
	notifier := &mockApprovalNotifier{}
	svc := NewUserService(repo, &mockGroupReader{}, notifier, nil, nil)

	user, err := svc.Approve(context.Background(), testAthleteID, ApproveUserRequest{}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, user.ApprovalState)
	assert.Equal(t, []string{testAthleteID}, repo.approved)
	assert.Equal(t, []bool{true}, notifier.decisions)
	require.Len(t, repo.logs, 1)
	assert.Equal(t, models.AuditActionApproveUser, repo.logs[0].Action)
}

func TestUserApproveWithInitialGroup(t *testing.T) {
	repo := &mockUserRepo{items: map[string]*models.User{
		testAthleteID: {ID: testAthleteID, Role: models.RoleAthlete, ApprovalState: models.ApprovalPending},
	}}
	groups := &mockGroupReader{groups: map[string]*models.TrainingGroup{
		testGroupID: {ID: testGroupID, TrainingID: "t1", Name: "Anfänger"},
	}}
	svc := NewUserService(repo, groups, nil, nil, nil)

	groupID := testGroupID
	_, err := svc.Approve(context.Background(), testAthleteID, ApproveUserRequest{GroupID: &groupID}, adminClaims())
	require.NoError(t, err)
	require.Len(t, repo.assigns, 1)
	assert.Equal(t, testGroupID, repo.assigns[0].GroupID)
	assert.Equal(t, "admin-1", repo.assigns[0].AssignedBy)
}

func TestUserApproveGroupConflict(t *testing.T) {
	repo := &mockUserRepo{items: map[string]*models.User{
		testAthleteID: {ID: testAthleteID, Role: models.RoleAthlete, ApprovalState: models.ApprovalPending},
	}}
	groups := &mockGroupReader{
		groups: map[string]*models.TrainingGroup{
			testGroupID: {ID: testGroupID, TrainingID: "t1", Name: "Anfänger"},
		},
		conflict: &models.GroupAssignmentConflict{TrainingID: "t1", GroupID: "other", GroupName: "Fortgeschrittene"},
	}
	svc := NewUserService(repo, groups, nil, nil, nil)

	groupID := testGroupID
	_, err := svc.Approve(context.Background(), testAthleteID, ApproveUserRequest{GroupID: &groupID}, adminClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Fortgeschrittene")
	assert.Empty(t, repo.approved)
}

func TestUserApproveGroupForTrainerRejected(t *testing.T) {
	repo := &mockUserRepo{items: map[string]*models.User{
		testTrainerID: {ID: testTrainerID, Role: models.RoleTrainer, ApprovalState: models.ApprovalPending},
	}}
	svc := NewUserService(repo, &mockGroupReader{}, nil, nil, nil)

	groupID := testGroupID
	_, err := svc.Approve(context.Background(), testTrainerID, ApproveUserRequest{GroupID: &groupID}, adminClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUserApproveAlreadyReviewed(t *testing.T) {
	repo := &mockUserRepo{items: map[string]*models.User{
		testAthleteID: {ID: testAthleteID, Role: models.RoleAthlete, ApprovalState: models.ApprovalApproved},
	}}
	svc := NewUserService(repo, &mockGroupReader{}, nil, nil, nil)

	_, err := svc.Approve(context.Background(), testAthleteID, ApproveUserRequest{}, adminClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestUserReject(t *testing.T) {
	repo := &mockUserRepo{items: map[string]*models.User{
		testAthleteID: {ID: testAthleteID, Role: models.RoleAthlete, ApprovalState: models.ApprovalPending},
	}}
	notifier := &mockApprovalNotifier{}
	svc := NewUserService(repo, &mockGroupReader{}, notifier, nil, nil)

	user, err := svc.Reject(context.Background(), testAthleteID, RejectUserRequest{Reason: "Kein Vereinsmitglied"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, user.ApprovalState)
	require.NotNil(t, user.RejectionReason)
	assert.Equal(t, "Kein Vereinsmitglied", *user.RejectionReason)
	assert.Equal(t, []bool{false}, notifier.decisions)
}

func TestUserRejectRequiresReason(t *testing.T) {
	repo := &mockUserRepo{items: map[string]*models.User{
		testAthleteID: {ID: testAthleteID, Role: models.RoleAthlete, ApprovalState: models.ApprovalPending},
	}}
	svc := NewUserService(repo, &mockGroupReader{}, nil, nil, nil)

	_, err := svc.Reject(context.Background(), testAthleteID, RejectUserRequest{}, adminClaims())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.rejected)
}
