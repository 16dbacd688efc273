package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mlehner/gymclub-api/internal/models"
	"github.com/mlehner/gymclub-api/pkg/config"
	appErrors "github.com/mlehner/gymclub-api/pkg/errors"
)

type mockAuthUserRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
	created []*models.User
}

func (m *mockAuthUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "generated"
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test_secret", Expiration: time.Hour, Issuer: "gymclub-api"}
}

func hashedUser(email, password string, role models.UserRole, state models.ApprovalState) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &models.User{
		ID:            "u1",
		Email:         email,
		PasswordHash:  string(hash),
		FullName:      "Mia Weber",
		Role:          role,
		ApprovalState: state,
	}
}

func TestAuthRegister(t *testing.T) {
	repo := &mockAuthUserRepo{}
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "  Mia.Weber@Example.com ",
		Password: "correct horse",
		FullName: "Mia Weber",
		Role:     "ATHLETE",
	})
	require.NoError(t, err)
	assert.Equal(t, "mia.weber@example.com", user.Email)
	assert.Equal(t, models.ApprovalPending, user.ApprovalState)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
}

func TestAuthRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthUserRepo{byEmail: map[string]*models.User{
		"mia.weber@example.com": {ID: "u1"},
	}}
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "mia.weber@example.com",
		Password: "correct horse",
		FullName: "Mia Weber",
		Role:     "ATHLETE",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthRegisterRejectsAdminRole(t *testing.T) {
	svc := NewAuthService(&mockAuthUserRepo{}, testJWTConfig(), nil, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "mia.weber@example.com",
		Password: "correct horse",
		FullName: "Mia Weber",
		Role:     "ADMIN",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAuthLoginIssuesToken(t *testing.T) {
	repo := &mockAuthUserRepo{byEmail: map[string]*models.User{
		"mia.weber@example.com": hashedUser("mia.weber@example.com", "correct horse", models.RoleAthlete, models.ApprovalApproved),
	}}
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "mia.weber@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleAthlete, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAthlete, claims.Role)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	repo := &mockAuthUserRepo{byEmail: map[string]*models.User{
		"mia.weber@example.com": hashedUser("mia.weber@example.com", "correct horse", models.RoleAthlete, models.ApprovalApproved),
	}}
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "mia.weber@example.com",
		Password: "wrong horse",
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&mockAuthUserRepo{}, testJWTConfig(), nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthLoginPendingAccount(t *testing.T) {
	repo := &mockAuthUserRepo{byEmail: map[string]*models.User{
		"mia.weber@example.com": hashedUser("mia.weber@example.com", "correct horse", models.RoleAthlete, models.ApprovalPending),
	}}
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "mia.weber@example.com",
		Password: "correct horse",
	})
	require.ErrorIs(t, err, appErrors.ErrPendingApproval)
}

func TestAuthLoginRejectedAccount(t *testing.T) {
	repo := &mockAuthUserRepo{byEmail: map[string]*models.User{
		"mia.weber@example.com": hashedUser("mia.weber@example.com", "correct horse", models.RoleAthlete, models.ApprovalRejected),
	}}
	svc := NewAuthService(repo, testJWTConfig(), nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "mia.weber@example.com",
		Password: "correct horse",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthValidateTokenTampered(t *testing.T) {
	svc := NewAuthService(&mockAuthUserRepo{}, testJWTConfig(), nil, nil)

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
