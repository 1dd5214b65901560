package handlers

import (
	"errors"
	"net/http"

	"ChatRelay/models"
	"ChatRelay/services"
	"ChatRelay/session"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	authService  *services.AuthService
	oauthService *services.OAuthService
}

func NewAuthHandler(authService *services.AuthService, oauthService *services.OAuthService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		oauthService: oauthService,
	}
}

type RegisterDTO struct {
	Email    string `json:"email"    validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginDTO struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) GetProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": h.oauthService.GetAvailableProviders(),
	})
}

func (h *AuthHandler) Register(c echo.Context) error {
	var dto RegisterDTO
	if err := c.Bind(&dto); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if err := c.Validate(&dto); err != nil {
		return err
	}

	user, err := h.authService.RegisterLocal(dto.Email, dto.Username, dto.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "email or username already taken",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to register",
		})
	}

	tokens, err := h.authService.IssueTokens(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate tokens",
		})
	}

	return c.JSON(http.StatusCreated, tokens)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var dto LoginDTO
	if err := c.Bind(&dto); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if err := c.Validate(&dto); err != nil {
		return err
	}

	user, err := h.authService.LoginLocal(dto.Email, dto.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	}

	tokens, err := h.authService.IssueTokens(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate tokens",
		})
	}

	return c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&body); err != nil || body.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "refresh_token required",
		})
	}

	claims, err := h.authService.ValidateRefreshToken(body.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid refresh token",
		})
	}

	var user models.User
	if err := h.authService.Db.First(&user, claims.UserID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "user not found",
		})
	}

	tokens, err := h.authService.IssueTokens(&user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate tokens",
		})
	}

	return c.JSON(http.StatusOK, tokens)
}

// Logout tears the server-side session down. The middleware deletes the
// Redis record and expires the cookie once the handler returns.
func (h *AuthHandler) Logout(c echo.Context) error {
	if sess := session.FromContext(c); sess != nil {
		sess.MarkDestroyed()
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

func (h *AuthHandler) GetCurrentUser(c echo.Context) error {
	user := c.Get("user").(*models.User)
	user.Password = ""
	return c.JSON(http.StatusOK, user)
}

// OAuthLogin stores a random state in the session and redirects to the
// provider. The callback checks the state round-tripped.
func (h *AuthHandler) OAuthLogin(c echo.Context) error {
	provider := c.Param("provider")
	state := uuid.New().String()

	if sess := session.FromContext(c); sess != nil {
		sess.Set("oauth_state", state)
	}

	url, err := h.oauthService.GetAuthURL(provider, state)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	return c.Redirect(http.StatusTemporaryRedirect, url)
}

func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	provider := c.Param("provider")
	code := c.QueryParam("code")
	state := c.QueryParam("state")

	sess := session.FromContext(c)
	if sess == nil || state == "" || sess.Get("oauth_state") != state {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid oauth state",
		})
	}
	sess.Delete("oauth_state")

	token, err := h.oauthService.ExchangeCode(provider, code)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "code exchange failed",
		})
	}

	userInfo, err := h.oauthService.GetUserInfo(provider, token)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "failed to fetch user info",
		})
	}

	user, err := h.authService.FindOrCreateOAuthUser(userInfo)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create user",
		})
	}

	tokens, err := h.authService.IssueTokens(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate tokens",
		})
	}

	return c.JSON(http.StatusOK, tokens)
}
