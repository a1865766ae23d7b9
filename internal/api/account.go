package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/settings"
)

const (
	ctxUser     = "user"
	ctxIdentity = "identity"
)

// requireAuth resolves the bearer token, or the token query parameter used
// by browser WebSocket clients.
func (h *Handler) requireAuth(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" || token == c.GetHeader("Authorization") {
		token = c.Query("token")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	user, id, err := h.Sessions.Resolve(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Set(ctxUser, user)
	c.Set(ctxIdentity, id)
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(ctxUser).(*models.User)
}

func currentIdentity(c *gin.Context) *auth.Identity {
	return c.MustGet(ctxIdentity).(*auth.Identity)
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	*auth.Session
	User *models.User `json:"user"`
}

func (h *Handler) signUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	sess, user, err := h.Sessions.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Session: sess, User: user})
}

func (h *Handler) signIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	sess, user, err := h.Sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Session: sess, User: user})
}

func (h *Handler) signOut(c *gin.Context) {
	if err := h.Sessions.SignOut(c.Request.Context(), currentIdentity(c).UID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handler) getSettings(c *gin.Context) {
	p, err := h.Settings.Load(c.Request.Context(), *currentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) saveProfile(c *gin.Context) {
	var req settings.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid profile")
		return
	}

	if err := h.Settings.SaveProfile(c.Request.Context(), *currentIdentity(c), req); err != nil {
		respondError(c, err)
		return
	}
	h.getSettings(c)
}

func (h *Handler) savePreferences(c *gin.Context) {
	var req struct {
		Theme models.Theme `json:"theme" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "theme is required")
		return
	}

	if err := h.Settings.SavePreferences(c.Request.Context(), currentIdentity(c).UID, req.Theme); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

func (h *Handler) saveSecurity(c *gin.Context) {
	var req struct {
		TwoFactorEnabled bool `json:"twoFactorEnabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid security settings")
		return
	}

	if err := h.Settings.SaveSecurity(c.Request.Context(), currentIdentity(c).UID, req.TwoFactorEnabled); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"twoFactorEnabled": req.TwoFactorEnabled})
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		badRequest(c, "avatar file is required")
		return
	}
	if fh.Size > settings.MaxUploadBytes {
		respondError(c, settings.ErrUploadTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	url, err := settings.EncodeAvatar(f)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Settings.SaveAvatar(c.Request.Context(), currentIdentity(c).UID, url); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photoBase64": url})
}
