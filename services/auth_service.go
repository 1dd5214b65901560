package services

import (
	"errors"
	"strconv"
	"time"

	"ChatRelay/config"
	"ChatRelay/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email or username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	tokenIssuer      = "chatrelay"
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// TokenClaims carries the authenticated identity. Kind separates access
// from refresh tokens, so a leaked refresh token cannot call the API and
// an access token cannot mint new tokens.
type TokenClaims struct {
	UserID   uint   `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

type AuthService struct {
	Db         *gorm.DB
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(db *gorm.DB, cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		Db:         db,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  time.Duration(cfg.TokenExpiry) * time.Hour,
		refreshTTL: time.Duration(cfg.RefreshExpiry) * time.Hour,
	}
}

func (s *AuthService) signToken(userID uint, kind string, ttl time.Duration, fill func(*TokenClaims)) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if fill != nil {
		fill(claims)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// IssueTokens mints the access/refresh pair for a logged-in user. The
// refresh token carries the user id only.
func (s *AuthService) IssueTokens(user *models.User) (*models.AuthResponse, error) {
	access, err := s.signToken(user.ID, tokenKindAccess, s.accessTTL, func(c *TokenClaims) {
		c.Email = user.Email
		c.Username = user.Username
	})
	if err != nil {
		return nil, err
	}

	refresh, err := s.signToken(user.ID, tokenKindRefresh, s.refreshTTL, nil)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
		User:         *user,
	}, nil
}

func (s *AuthService) parseToken(raw, kind string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{},
		func(*jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithIssuer(tokenIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) ValidateAccessToken(raw string) (*TokenClaims, error) {
	return s.parseToken(raw, tokenKindAccess)
}

func (s *AuthService) ValidateRefreshToken(raw string) (*TokenClaims, error) {
	return s.parseToken(raw, tokenKindRefresh)
}

func (s *AuthService) RegisterLocal(email, username, password string) (*models.User, error) {
	var taken int64
	if err := s.Db.Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:    email,
		Username: username,
		Password: string(hash),
		Provider: "local",
		Type:     "member",
	}
	if err := s.Db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) LoginLocal(email, password string) (*models.User, error) {
	var user models.User
	err := s.Db.Where("email = ? AND provider = ?", email, "local").First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// FindOrCreateOAuthUser maps a provider identity onto a local account,
// refreshing the mutable profile fields on every login.
func (s *AuthService) FindOrCreateOAuthUser(info *OAuthUserInfo) (*models.User, error) {
	var user models.User
	err := s.Db.Where("provider = ? AND provider_id = ?", info.Provider, info.ID).First(&user).Error
	switch {
	case err == nil:
		user.Email = info.Email
		user.Avatar = info.Avatar
		if err := s.Db.Save(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:      info.Email,
			Username:   info.Name,
			Provider:   info.Provider,
			ProviderID: info.ID,
			Avatar:     info.Avatar,
			Type:       "member",
		}
		if err := s.Db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	default:
		return nil, err
	}
}
