package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/entitlement"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/oauth"
	"github.com/thrivewithai/thrive-backend/internal/session"
	"github.com/thrivewithai/thrive-backend/internal/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("email required and password must be at least 8 characters")
	ErrEmailRequired      = errors.New("identity provider did not return an email")
	ErrEmailNotVerified   = errors.New("identity provider has not verified this email")
	ErrIdentityConflict   = errors.New("account already linked to another identity for this provider")
	ErrAppleNotConfigured = errors.New("apple sign-in is not configured")
)

// IdentityVerifier checks a provider-issued identity token.
type IdentityVerifier interface {
	Configured() bool
	Verify(ctx context.Context, identityToken string) (*oauth.UserInfo, error)
}

type AuthService struct {
	users store.UserStore
	db    *gorm.DB
	cfg   *config.Config
	apple IdentityVerifier
	gate  *entitlement.Gate
}

func NewAuthService(users store.UserStore, db *gorm.DB, cfg *config.Config, apple IdentityVerifier, gate *entitlement.Gate) *AuthService {
	return &AuthService{
		users: users,
		db:    db,
		cfg:   cfg,
		apple: apple,
		gate:  gate,
	}
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := models.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") || len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	passwordHash := string(hash)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}

	now := time.Now()
	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: &passwordHash,
		LastLoginAt:  &now,
		Identities: []models.LinkedIdentity{
			{Provider: models.ProviderCredentials, ProviderAccountID: email},
		},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID.String(), "provider", models.ProviderCredentials)
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.touchLogin(ctx, user)
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	s.db.WithContext(ctx).Model(&stored).Update("revoked", true)
	if time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}

	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashToken(req.RefreshToken)).
		Update("revoked", true).Error
}

// SignInExternal signs a user in through an external identity provider.
//
// Lookup order: the linked identity itself, then the email. A known email
// gets the new identity attached, so one person signing in with two
// providers ends up with one user and two identities. Merging trusts the
// provider's email verification, so unverified emails are refused.
func (s *AuthService) SignInExternal(ctx context.Context, info *oauth.UserInfo) (*dto.AuthResponse, error) {
	user, err := s.resolveExternalUser(ctx, info)
	if err != nil {
		return nil, err
	}
	s.touchLogin(ctx, user)
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) resolveExternalUser(ctx context.Context, info *oauth.UserInfo) (*models.User, error) {
	user, err := s.users.FindUserByIdentity(ctx, info.Provider, info.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	email := models.NormalizeEmail(info.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !info.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	user, err = s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return s.attachIdentity(ctx, user, info)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &models.User{
		Email: email,
		Name:  displayName(info.Name, email),
		Identities: []models.LinkedIdentity{
			{Provider: info.Provider, ProviderAccountID: info.ID},
		},
	}
	if info.AvatarURL != "" {
		user.Image = &info.AvatarURL
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		// A concurrent first sign-in created the user; link to it instead.
		existing, findErr := s.users.FindUserByEmail(ctx, email)
		if findErr != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return s.attachIdentity(ctx, existing, info)
	}

	slog.Info("user created from identity provider", "user_id", user.ID.String(), "provider", info.Provider)
	return user, nil
}

func (s *AuthService) attachIdentity(ctx context.Context, user *models.User, info *oauth.UserInfo) (*models.User, error) {
	if user.HasIdentity(info.Provider) {
		return nil, ErrIdentityConflict
	}

	identity := &models.LinkedIdentity{Provider: info.Provider, ProviderAccountID: info.ID}
	if err := s.users.LinkIdentity(ctx, user.ID, identity); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrIdentityConflict
		}
		return nil, err
	}
	user.Identities = append(user.Identities, *identity)

	slog.Info("identity linked by email", "user_id", user.ID.String(), "provider", info.Provider)
	return user, nil
}

func (s *AuthService) AppleSignIn(ctx context.Context, req *dto.AppleSignInRequest) (*dto.AuthResponse, error) {
	if s.apple == nil || !s.apple.Configured() {
		return nil, ErrAppleNotConfigured
	}
	if req.IdentityToken == "" {
		return nil, errors.New("identity token is required")
	}

	info, err := s.apple.Verify(ctx, req.IdentityToken)
	if err != nil {
		slog.Error("apple token verification failed", "error", err)
		return nil, fmt.Errorf("failed to verify Apple identity token: %w", err)
	}
	// Apple only sends the name on the very first authorization, and only to
	// the client.
	info.Name = req.FullName

	return s.SignInExternal(ctx, info)
}

func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// IssueTokens is used after an OAuth callback has already resolved the user.
func (s *AuthService) IssueTokens(ctx context.Context, userID uuid.UUID) (*dto.AuthResponse, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) UserResponse(user *models.User) dto.UserResponse {
	providers := make([]string, 0, len(user.Identities))
	for _, id := range user.Identities {
		providers = append(providers, id.Provider)
	}
	return dto.UserResponse{
		ID:                 user.ID,
		Email:              user.Email,
		Name:               user.Name,
		Image:              user.Image,
		Role:               user.Role,
		SubscriptionStatus: user.SubscriptionStatus,
		SubscriptionTier:   user.SubscriptionTier,
		HasPremiumAccess:   s.gate.HasPremiumAccess(session.FromUser(user)),
		Providers:          providers,
		LastLoginAt:        user.LastLoginAt,
		CreatedAt:          user.CreatedAt,
	}
}

func (s *AuthService) touchLogin(ctx context.Context, user *models.User) {
	now := time.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		slog.Warn("failed to record last login", "user_id", user.ID.String(), "error", err)
		return
	}
	user.LastLoginAt = &now
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWTAccessExpiry.Seconds()),
		User:         s.UserResponse(user),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)

	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func displayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return strings.Split(email, "@")[0]
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
