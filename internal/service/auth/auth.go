// Package auth authenticates staff console accounts. Credentials live in
// the staff_users table as bcrypt hashes and sessions are carried by JWT;
// there are no hard-coded credential pairs.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zaxchat/zax-backend/internal/apperr"
	"github.com/zaxchat/zax-backend/internal/config"
	"github.com/zaxchat/zax-backend/internal/model"
)

// StaffStore is the slice of the staff repository the auth service needs.
type StaffStore interface {
	Create(ctx context.Context, staff *model.StaffUser) error
	GetByUsername(ctx context.Context, username string) (*model.StaffUser, error)
	Count(ctx context.Context) (int64, error)
}

// Service issues and validates staff tokens.
type Service struct {
	repo     StaffStore
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates the auth service. An empty configured secret gets a
// random one, which invalidates tokens across restarts.
func NewService(repo StaffStore, cfg *config.AuthConfig) *Service {
	secret := cfg.JWTSecret
	if secret == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			panic(fmt.Sprintf("failed to generate JWT secret: %v", err))
		}
		secret = base64.StdEncoding.EncodeToString(raw)
		log.Println("auth: no JWT secret configured, generated an ephemeral one")
	}
	return &Service{
		repo:     repo,
		secret:   []byte(secret),
		tokenTTL: time.Duration(cfg.TokenTTLMinutes) * time.Minute,
	}
}

// Seed creates the configured staff account when the table is empty.
func (s *Service) Seed(ctx context.Context, cfg *config.AuthConfig) error {
	if cfg.SeedUsername == "" || cfg.SeedPassword == "" {
		return nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}
	staff := &model.StaffUser{
		ID:           uuid.New().String(),
		Username:     cfg.SeedUsername,
		PasswordHash: string(hash),
		DisplayName:  cfg.SeedDisplayName,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		return err
	}
	log.Printf("auth: seeded staff account %s", staff.Username)
	return nil
}

// Claims is the staff token payload.
type Claims struct {
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *model.StaffUser, error) {
	staff, err := s.repo.GetByUsername(ctx, username)
	if err != nil || !staff.IsActive {
		return "", nil, apperr.Forbiddenf("invalid username or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)) != nil {
		return "", nil, apperr.Forbiddenf("invalid username or password")
	}

	now := time.Now()
	claims := &Claims{
		DisplayName: staff.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, staff, nil
}

// Validate parses a token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Forbiddenf("invalid or expired token")
	}
	return claims, nil
}
