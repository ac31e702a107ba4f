package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/microbrsoil-backend/internal/http/middleware"
	"github.com/yungbote/microbrsoil-backend/internal/http/response"
	"github.com/yungbote/microbrsoil-backend/internal/services"
)

type AuthHandler struct {
	authService  services.AuthService
	secureCookie bool
}

func NewAuthHandler(authService services.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

// POST /auth/register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, err := ah.authService.Register(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		response.RespondAPIError(c, err, "registration_failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

// POST /auth/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	token, user, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.RespondAPIError(c, err, "login_failed")
		return
	}
	expiresIn := int(ah.authService.AccessTTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, expiresIn, "/", "", ah.secureCookie, true)
	response.RespondOK(c, gin.H{
		"success":    true,
		"user":       user,
		"expires_in": expiresIn,
	})
}

// POST /auth/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", ah.secureCookie, true)
	response.RespondOK(c, gin.H{"success": true})
}
