package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

type fakeAdmins struct {
	byEmail map[string]*model.Admin
	nextID  int
}

func (f *fakeAdmins) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	for _, a := range f.byEmail {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAdmins) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	if a, ok := f.byEmail[email]; ok {
		return a, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAdmins) Create(ctx context.Context, a *model.Admin) error {
	if _, ok := f.byEmail[a.Email]; ok {
		return repository.ErrDuplicateAdmin
	}
	f.nextID++
	a.ID = f.nextID
	f.byEmail[a.Email] = a
	return nil
}

func TestAdminTokenRoundTrip(t *testing.T) {
	auth := NewAuthService(testConfig())

	token, err := auth.GenerateAdminToken(7)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 7 || claims.TokenType != TokenTypeAdmin {
		t.Errorf("claims = %+v", claims)
	}

	other := testConfig()
	other.JWTSecret = "another-secret"
	if _, err := NewAuthService(other).ValidateToken(token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

func TestExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWTExpiry = -time.Minute
	auth := NewAuthService(cfg)

	token, err := auth.GenerateAdminToken(1)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	if _, err := auth.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestAdminLogin(t *testing.T) {
	auth := NewAuthService(testConfig())
	svc := NewAdminService(&fakeAdmins{byEmail: map[string]*model.Admin{}}, auth)
	ctx := context.Background()

	admin := &model.Admin{Email: "ops@example.com", Name: "Ops"}
	if err := svc.Create(ctx, admin, "s3cret-pass"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if admin.PasswordHash == "" || admin.PasswordHash == "s3cret-pass" {
		t.Fatal("password should be stored hashed")
	}

	resp, err := svc.Login(ctx, "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token == "" || resp.Admin.ID != admin.ID {
		t.Errorf("resp = %+v", resp)
	}

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "ops@example.com", "nope-nope"},
		{"unknown email", "who@example.com", "s3cret-pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(ctx, tt.email, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("got %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	cfg := testConfig()
	auth := NewAuthService(cfg)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType: TokenTypeAdmin,
		UserID:    1,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ValidateToken(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestIssueAdminTokenExpiry(t *testing.T) {
	auth := NewAuthService(testConfig())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return fixed }

	issued, err := auth.IssueAdminToken(2)
	if err != nil {
		t.Fatal(err)
	}
	if !issued.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", issued.ExpiresAt)
	}
	if _, err := auth.ValidateToken(issued.Token); err != nil {
		t.Errorf("ValidateToken at issue time: %v", err)
	}
}
