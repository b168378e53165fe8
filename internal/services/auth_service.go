package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/changedesk/changedesk/internal/config"
	"github.com/changedesk/changedesk/internal/dto"
	"github.com/changedesk/changedesk/internal/models"
	"github.com/changedesk/changedesk/internal/policy"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// AuthService holds local credentials and issues stateless session
// tokens. Logout is purely cookie clearing; a leaked token stays valid
// until its natural expiry.
type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Login verifies a username/password pair. An unknown username, an
// account without a local credential and a hash mismatch all produce
// ErrInvalidCredentials so callers cannot enumerate usernames.
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	s.db.Model(&user).Update("last_signed_in", now)
	user.LastSignedIn = now

	token, err := s.IssueToken(&user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Success: true,
		Token:   token,
		User:    mapUserToResponse(&user),
	}, nil
}

// ChangePassword rotates the caller's local credential after verifying
// the current one.
func (s *AuthService) ChangePassword(userID uint, req *dto.ChangePasswordRequest) error {
	if len(req.NewPassword) < 8 {
		return errors.New("new password must be at least 8 characters")
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return ErrUserNotFound
	}
	if user.PasswordHash == nil {
		return ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.Model(&user).Update("password_hash", string(hash)).Error
}

// CreateUser provisions a local account. Plaintext is hashed before
// persisting and never stored or returned.
func (s *AuthService) CreateUser(req *dto.CreateUserRequest) error {
	if len(req.Username) < 3 || len(req.Username) > 64 {
		return errors.New("username must be between 3 and 64 characters")
	}
	if len(req.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return errors.New("role must be user or admin")
	}

	var existing models.User
	if err := s.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	name := req.Name
	if name == "" {
		name = req.Username
	}

	hashStr := string(hash)
	user := models.User{
		Username:     req.Username,
		PasswordHash: &hashStr,
		Name:         name,
		Email:        req.Email,
		Role:         role,
		LoginMethod:  "local",
		LastSignedIn: time.Now(),
	}

	if err := s.db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *AuthService) UpdateUserRole(userID uint, role models.Role) error {
	if !role.Valid() {
		return errors.New("role must be user or admin")
	}
	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *AuthService) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *AuthService) GetUser(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// IssueToken signs a session token embedding the user's id, username and
// role, expiring after the configured session lifetime (7 days).
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(s.cfg.SessionExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SessionSecret))
}

// ResolveToken verifies a raw session token and returns the embedded
// identity. Any failure (bad signature, expired, malformed) yields nil:
// absence of identity is a valid outcome for public operations, never a
// hard error.
func (s *AuthService) ResolveToken(raw string) *policy.Identity {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.SessionSecret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return nil
	}

	username, _ := claims["username"].(string)
	roleStr, _ := claims["role"].(string)
	role := models.Role(roleStr)
	if !role.Valid() {
		return nil
	}

	return &policy.Identity{
		UserID:   uint(id),
		Username: username,
		Role:     role,
	}
}

// EnsureAdmin bootstraps the first admin account. Idempotent: it does
// nothing when any admin already exists. The generated password is
// logged exactly once and cannot be recovered afterwards.
func (s *AuthService) EnsureAdmin() error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := uuid.NewString()
	if err := s.CreateUser(&dto.CreateUserRequest{
		Username: s.cfg.AdminUsername,
		Password: password,
		Role:     models.RoleAdmin,
	}); err != nil {
		return err
	}

	slog.Warn("bootstrap admin account created; change this password immediately",
		"username", s.cfg.AdminUsername, "password", password)
	return nil
}

func mapUserToResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
	}
}
