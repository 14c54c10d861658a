package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/domain/auth"
)

// Register creates an account. It does not sign the user in.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, invalidBody(err))
		return
	}
	user, err := h.authSvc.Register(c.Request.Context(), req)
	h.metrics.AuthEvent("register", outcome(err))
	if err != nil {
		abortWithError(c, fromAuthError(err))
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", gin.H{"user": user})
}

// Login verifies credentials and hands out a token pair. The refresh token only
// travels in its cookie.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, invalidBody(err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	h.metrics.AuthEvent("login", outcome(err))
	if err != nil {
		abortWithError(c, fromAuthError(err))
		return
	}
	h.cookies.setTokens(c, resp.Tokens)
	respond(c, http.StatusOK, "Login successful", gin.H{
		"user":        resp.User,
		"accessToken": resp.Tokens.AccessToken,
	})
}

// Refresh rotates the refresh token presented in the cookie.
func (h *Handler) Refresh(c *gin.Context) {
	token, ok := h.cookies.read(c, refreshTokenCookie)
	if !ok {
		h.metrics.AuthEvent("refresh", "missing")
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "NO_REFRESH_TOKEN", "Refresh token not provided", nil))
		return
	}
	pair, err := h.authSvc.Refresh(c.Request.Context(), token)
	h.metrics.AuthEvent("refresh", outcome(err))
	if err != nil {
		abortWithError(c, fromRefreshError(err))
		return
	}
	h.cookies.setTokens(c, pair)
	respond(c, http.StatusOK, "Token refreshed successfully", gin.H{"accessToken": pair.AccessToken})
}

// Logout revokes the presented refresh token when it verifies. Missing or unverifiable tokens
// still succeed; a registry failure is reported as 500, with the cookies cleared either way.
func (h *Handler) Logout(c *gin.Context) {
	token, _ := h.cookies.read(c, refreshTokenCookie)
	err := h.authSvc.Logout(c.Request.Context(), token)
	h.metrics.AuthEvent("logout", outcome(err))
	h.cookies.clearTokens(c)
	if err != nil {
		abortWithError(c, fromAuthError(err))
		return
	}
	respond(c, http.StatusOK, "Logout successful", nil)
}

// LogoutAll revokes every refresh token of the current user.
func (h *Handler) LogoutAll(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "NO_TOKEN", "Access denied. No token provided.", nil))
		return
	}
	if err := h.authSvc.LogoutAll(c.Request.Context(), principal.ID); err != nil {
		abortWithError(c, fromAuthError(err))
		return
	}
	h.metrics.AuthEvent("logout_all", "success")
	h.cookies.clearTokens(c)
	respond(c, http.StatusOK, "Logged out from all devices", nil)
}

// Me returns the current user's profile.
func (h *Handler) Me(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "NO_TOKEN", "Access denied. No token provided.", nil))
		return
	}
	user, err := h.authSvc.Profile(c.Request.Context(), principal.ID)
	if err != nil {
		abortWithError(c, fromAuthError(err))
		return
	}
	respond(c, http.StatusOK, "User retrieved successfully", gin.H{"user": user})
}

// ChangePassword replaces the password and signs the user out everywhere.
func (h *Handler) ChangePassword(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "NO_TOKEN", "Access denied. No token provided.", nil))
		return
	}
	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, invalidBody(err))
		return
	}
	err := h.authSvc.ChangePassword(c.Request.Context(), principal.ID, req)
	h.metrics.AuthEvent("change_password", outcome(err))
	if err != nil {
		if httpErr := fromAuthError(err); httpErr.Code == "INVALID_CREDENTIALS" {
			// a wrong current password is a form error, not an authentication failure
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "INVALID_PASSWORD", "Current password is incorrect", err))
		} else {
			abortWithError(c, httpErr)
		}
		return
	}
	h.cookies.clearTokens(c)
	respond(c, http.StatusOK, "Password changed successfully, please login again", nil)
}
