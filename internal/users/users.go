// Package users registers accounts and resolves bearer tokens to users.
package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterInput struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Phone     string `json:"phone" binding:"omitempty,max=32"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Session is a user together with a freshly issued token. The token is shown once.
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type Service struct {
	db   *gorm.DB
	cost int
}

// NewService uses bcrypt.DefaultCost when cost is zero.
func NewService(db *gorm.DB, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{db: db, cost: cost}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if len(in.Password) < 8 {
		return nil, apperr.Invalid("password", "must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token := newToken()
	u := model.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        normalizeEmail(in.Email),
		Phone:        in.Phone,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		IsActive:     true,
		TokenHash:    hashToken(token),
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Invalid("email", "has already been taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &Session{User: &u, Token: token}, nil
}

// Login checks the password and rotates the token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(in.Email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: account disabled", apperr.ErrForbidden)
	}

	token := newToken()
	if err := s.db.WithContext(ctx).Model(&u).Update("token_hash", hashToken(token)).Error; err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &Session{User: &u, Token: token}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.ErrUnauthorized
	}
	var u model.User
	err := s.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: account disabled", apperr.ErrUnauthorized)
	}
	return &u, nil
}

// ProfilePatch updates the caller. Nil fields are left unchanged.
type ProfilePatch struct {
	FirstName *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email     *string `json:"email" binding:"omitempty,email,max=255"`
	Phone     *string `json:"phone" binding:"omitempty,max=32"`
}

// Profile returns the stored account.
func (s *Service) Profile(ctx context.Context, userID uint) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint, patch ProfilePatch) (*model.User, error) {
	updates := map[string]any{}
	if patch.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*patch.LastName)
	}
	if patch.Email != nil {
		updates["email"] = normalizeEmail(*patch.Email)
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Invalid("email", "has already been taken")
		}
		if err != nil {
			return nil, fmt.Errorf("update user %d: %w", userID, err)
		}
	}
	return s.Profile(ctx, userID)
}

// UserFilter narrows ListUsers. Zero values do not filter.
type UserFilter struct {
	Search   string
	Role     string
	IsActive *bool
	Page     int
	PerPage  int
}

// UserPage is one page of accounts.
type UserPage struct {
	Users   []model.User `json:"users"`
	Total   int64        `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
}

// ListUsers pages through accounts for administrators. Search matches the id
// exactly and names, email or phone by substring.
func (s *Service) ListUsers(ctx context.Context, f UserFilter) (*UserPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 10
	}
	q := s.db.WithContext(ctx).Model(&model.User{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("CAST(id AS TEXT) = ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR email LIKE ? OR phone LIKE ?",
			term, like, like, like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	q = q.Session(&gorm.Session{})

	out := &UserPage{Page: f.Page, PerPage: f.PerPage}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	err := q.Order("id").Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).Find(&out.Users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// DisableUser deactivates an account and revokes its token. Admins cannot
// disable themselves.
func (s *Service) DisableUser(ctx context.Context, actorID, userID uint) (*model.User, error) {
	if actorID == userID {
		return nil, apperr.Conflictf("you cannot disable your own account")
	}
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Conflictf("user %d is already disabled", userID)
	}
	err = s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(map[string]any{
		"is_active":  false,
		"token_hash": "",
	}).Error
	if err != nil {
		return nil, fmt.Errorf("disable user %d: %w", userID, err)
	}
	u.IsActive = false
	u.TokenHash = ""
	return u, nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
