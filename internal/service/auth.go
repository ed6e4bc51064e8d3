package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is how long a login token stays valid.
const TokenTTL = 7 * 24 * time.Hour

// AuthService handles authentication, JWT, and account management.
type AuthService struct {
	jwtSecret     string
	adminEmail    string
	adminPassword string
	accounts      AccountStore
	links         LinkDirectory
	validate      *validator.Validate
	log           logrus.FieldLogger
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, adminEmail, adminPassword string, accounts AccountStore, links LinkDirectory, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		accounts:      accounts,
		links:         links,
		validate:      validator.New(),
		log:           log.WithField("component", "auth"),
	}
}

// SeedAdmin creates the default admin account if it doesn't exist.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	exists, err := s.accounts.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		s.log.WithField("email", s.adminEmail).Info("admin account already exists")
		return nil
	}

	if _, err := s.create(ctx, s.adminEmail, s.adminPassword, domain.RoleAdmin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	s.log.WithField("email", s.adminEmail).Info("admin account created")
	return nil
}

// Register creates a regular account from a self-service sign up.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	account, err := s.createUnique(ctx, req.Email, req.Password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	s.log.WithField("account_id", account.ID).Info("account registered")
	return toUserResponse(account, false), nil
}

// Login validates credentials against the database and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   account.ID,
		"email": account.Email,
		"role":  account.Role,
		"exp":   now.Add(TokenTTL).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}

	return &domain.LoginResponse{
		Token: signed,
		User: domain.LoginUser{
			ID:    account.ID,
			Email: account.Email,
		},
	}, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:   getClaimString(claims, "sub"),
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// ListUsers returns all accounts (admin only).
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.UserResponse, error) {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list users", err)
	}

	responses := make([]*domain.UserResponse, len(accounts))
	for i, a := range accounts {
		linked, err := s.linked(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		responses[i] = toUserResponse(a, linked)
	}
	return responses, nil
}

// CreateUser creates a new account with bcrypt password (admin only).
func (s *AuthService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	account, err := s.createUnique(ctx, req.Email, req.Password, role)
	if err != nil {
		return nil, err
	}
	return toUserResponse(account, false), nil
}

// DeleteUser removes an account by ID (admin only). Its subscriptions and
// linked chat go with it.
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find user", err)
	}
	if account == nil {
		return domain.ErrNotFound("user not found")
	}
	if account.Role == domain.RoleAdmin {
		return domain.ErrBadRequest("cannot delete admin user")
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		return domain.ErrInternal("failed to delete user", err)
	}
	return nil
}

// GetUserByID returns an account profile by ID (for /api/auth/me).
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*domain.UserResponse, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	linked, err := s.linked(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(account, linked), nil
}

// Unlink removes the account's linked chat. Reminders stop until it links again.
func (s *AuthService) Unlink(ctx context.Context, accountID string) error {
	if err := s.links.DeleteLinkedIdentity(ctx, accountID); err != nil {
		return domain.ErrInternal("failed to unlink chat", err)
	}
	s.log.WithField("account_id", accountID).Info("chat unlinked")
	return nil
}

func (s *AuthService) linked(ctx context.Context, accountID string) (bool, error) {
	identity, err := s.links.FindLinkedIdentity(ctx, accountID)
	if err != nil {
		return false, domain.ErrInternal("failed to look up linked chat", err)
	}
	return identity != nil, nil
}

func (s *AuthService) createUnique(ctx context.Context, email, password, role string) (*domain.Account, error) {
	email = normalizeEmail(email)
	exists, err := s.accounts.Exists(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrConflict("email already registered")
	}
	account, err := s.create(ctx, email, password, role)
	if err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}
	return account, nil
}

func (s *AuthService) create(ctx context.Context, email, password, role string) (*domain.Account, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	account := &domain.Account{
		ID:        domain.NewAccountID(),
		Email:     normalizeEmail(email),
		Password:  string(hashed),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(a *domain.Account, linked bool) *domain.UserResponse {
	return &domain.UserResponse{
		ID:        a.ID,
		Email:     a.Email,
		Role:      a.Role,
		Linked:    linked,
		CreatedAt: a.CreatedAt,
	}
}
