package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/ports"
	"freelance/internal/storage"
)

const minPasswordLength = 8

// Claims identify the user behind a bearer token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users      ports.UserStore
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
	logger     *log.Logger
}

func NewAuthService(users ports.UserStore, secret string, ttl time.Duration, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{
		users:      users,
		secret:     []byte(secret),
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger.WithComponent(log.ComponentAuth),
	}
}

// Register creates a Free-plan user and returns a token for it.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (core.User, string, error) {
	email = strings.TrimSpace(email)
	if len(password) < minPasswordLength {
		return core.User{}, "", core.ErrPasswordTooWeak
	}
	if strings.TrimSpace(name) == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	u := core.User{Email: email, Name: name, Plan: core.PlanFree}
	if err := u.Validate(); err != nil {
		return core.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return core.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	u, err = s.users.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return core.User{}, "", ErrEmailTaken
		}
		return core.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return core.User{}, "", err
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID)
	return u, token, nil
}

// Login verifies the password. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, string, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, "", ErrInvalidCredentials
		}
		return core.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Failed login", log.FieldUserID, u.ID)
		return core.User{}, "", ErrInvalidCredentials
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return core.User{}, "", err
	}
	return u, token, nil
}

func (s *AuthService) IssueToken(u core.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken returns the user id carried by a valid HS256 token.
func (s *AuthService) ParseToken(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (core.User, error) {
	return s.users.GetUser(ctx, userID)
}

func (s *AuthService) ChangePlan(ctx context.Context, userID int64, plan core.PlanType) (core.User, error) {
	if !plan.Valid() {
		return core.User{}, core.ErrInvalidPlan
	}
	u, err := s.users.UpdateUserPlan(ctx, userID, plan)
	if err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "Plan changed", log.FieldUserID, userID, "plan", plan)
	return u, nil
}
