// Package session issues and restores the shopkeeper's session.
//
// Provider is the seam for a real authentication backend. MockProvider
// accepts a single demo account and lets anyone sign up; it never keeps a
// user directory.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcclellann/credikhaata/pkg/logger"
	"github.com/mcclellann/credikhaata/pkg/models"
	"github.com/mcclellann/credikhaata/pkg/store"
	"github.com/mcclellann/credikhaata/pkg/validation"
	"golang.org/x/crypto/bcrypt"
)

const (
	DemoEmail    = "demo@example.com"
	DemoPassword = "password"
)

// Provider creates, restores and clears the current session.
type Provider interface {
	Login(ctx context.Context, email, password string) (models.Session, error)
	Signup(ctx context.Context, name, email, password, shopName string) (models.Session, error)
	Logout(ctx context.Context) error
	// Current returns the active session, if any.
	Current() (models.Session, bool)
	// Restore loads the persisted session. Call once at startup.
	Restore(ctx context.Context) error
	// Verify checks that token belongs to the active session.
	Verify(token string) (models.Session, error)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type signupInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ShopName string `json:"shopName" validate:"required"`
}

var signupMessages = validation.Messages{
	"name.required":     "Name is required",
	"email.required":    "Email is required",
	"email.email":       "Please enter a valid email",
	"password.required": "Password is required",
	"shopName.required": "Shop name is required",
}

// MockProvider stands in for an authentication backend.
type MockProvider struct {
	mu        sync.Mutex
	storage   store.Storage
	secret    []byte
	delay     time.Duration
	demoHash  []byte
	validator *validation.Validator
	now       func() time.Time

	current *models.Session
}

// NewMockProvider persists sessions in s and signs tokens with secret.
// Login and Signup wait for delay to emulate network latency.
func NewMockProvider(s store.Storage, secret string, delay time.Duration) (*MockProvider, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}
	return &MockProvider{
		storage:   s,
		secret:    []byte(secret),
		delay:     delay,
		demoHash:  hash,
		validator: validation.New(),
		now:       time.Now,
	}, nil
}

func (p *MockProvider) Login(ctx context.Context, email, password string) (models.Session, error) {
	if err := p.wait(ctx); err != nil {
		return models.Session{}, err
	}

	email = strings.TrimSpace(email)
	if email != DemoEmail || bcrypt.CompareHashAndPassword(p.demoHash, []byte(password)) != nil {
		logger.Info("Rejected login for %q", email)
		return models.Session{}, models.ErrAuthentication
	}

	s := models.Session{
		ID:       "1",
		Name:     "Demo User",
		Email:    DemoEmail,
		ShopName: "Demo Shop",
	}
	return p.start(ctx, s)
}

func (p *MockProvider) Signup(ctx context.Context, name, email, password, shopName string) (models.Session, error) {
	in := signupInput{
		Name:     strings.TrimSpace(name),
		Email:    strings.TrimSpace(email),
		Password: password,
		ShopName: strings.TrimSpace(shopName),
	}
	verr := models.NewValidationError()
	if err := p.validator.Struct(in, signupMessages, verr); err != nil {
		return models.Session{}, err
	}
	if err := verr.ErrOrNil(); err != nil {
		return models.Session{}, err
	}

	if err := p.wait(ctx); err != nil {
		return models.Session{}, err
	}

	s := models.Session{
		ID:       models.NewSessionID(),
		Name:     in.Name,
		Email:    in.Email,
		ShopName: in.ShopName,
	}
	return p.start(ctx, s)
}

func (p *MockProvider) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.storage.Delete(ctx, store.KeySession); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	p.current = nil
	logger.Info("Session cleared")
	return nil
}

func (p *MockProvider) Current() (models.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return models.Session{}, false
	}
	return *p.current, true
}

func (p *MockProvider) Restore(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.storage.Get(ctx, store.KeySession)
	if errors.Is(err, models.ErrNotFound) {
		p.current = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}
	p.current = &s
	logger.Info("Restored session for %s", s.Email)
	return nil
}

func (p *MockProvider) Verify(token string) (models.Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", models.ErrAuthentication, err)
	}

	s, ok := p.Current()
	if !ok || s.ID != c.Subject || s.Token != token {
		return models.Session{}, fmt.Errorf("%w: session is no longer active", models.ErrAuthentication)
	}
	return s, nil
}

// start signs a token for s, persists it and makes it current.
func (p *MockProvider) start(ctx context.Context, s models.Session) (models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s.IssuedAt = p.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  s.ID,
			IssuedAt: jwt.NewNumericDate(s.IssuedAt),
			ID:       models.NewSessionID(),
		},
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	s.Token = signed

	data, err := json.Marshal(s)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := p.storage.Put(ctx, store.KeySession, data); err != nil {
		return models.Session{}, fmt.Errorf("failed to persist session: %w", err)
	}

	p.current = &s
	logger.Info("Session started for %s", s.Email)
	return s, nil
}

func (p *MockProvider) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
