package service

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
)

// TokenTypeAdmin marks tokens issued to operators. Candidates never hold a
// token; they are identified by examination identifier only.
const TokenTypeAdmin = "admin"

const tokenIssuer = "assessment-backend"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    int    `json:"user_id"`
}

// IssuedToken is a signed token and the moment it stops being accepted.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService handles password hashing and JWT issuance.
type AuthService struct {
	cfg *config.Config
	now func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// BurnPasswordCheck spends the same bcrypt work as CheckPassword so unknown
// accounts cannot be told apart by response time.
func (s *AuthService) BurnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cfg.BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// IssueAdminToken signs a token for an admin.
func (s *AuthService) IssueAdminToken(adminID int) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(adminID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: TokenTypeAdmin,
		UserID:    adminID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// GenerateAdminToken is IssueAdminToken without the expiry.
func (s *AuthService) GenerateAdminToken(adminID int) (string, error) {
	t, err := s.IssueAdminToken(adminID)
	if err != nil {
		return "", err
	}
	return t.Token, nil
}

// ValidateToken parses and validates a JWT, returning the claims. Only
// HS256 tokens from this issuer are accepted.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
