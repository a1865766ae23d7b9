package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/floodsense/internal/auth"
	"github.com/mr1hm/floodsense/internal/geocode"
	"github.com/mr1hm/floodsense/internal/livesync"
	"github.com/mr1hm/floodsense/internal/overlay"
	"github.com/mr1hm/floodsense/internal/routing"
	"github.com/mr1hm/floodsense/internal/settings"
	"github.com/mr1hm/floodsense/internal/weather"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrInvalidEmail, http.StatusBadRequest},
	{auth.ErrWeakPassword, http.StatusBadRequest},
	{auth.ErrEmailInUse, http.StatusConflict},
	{auth.ErrUserNotFound, http.StatusNotFound},
	{livesync.ErrAlertNotFound, http.StatusNotFound},
	{livesync.ErrInvalidAlert, http.StatusBadRequest},
	{livesync.ErrEmptyBroadcast, http.StatusBadRequest},
	{routing.ErrLocationUnavailable, http.StatusUnprocessableEntity},
	{routing.ErrNoShelterRoutes, http.StatusNotFound},
	{overlay.ErrUnknownArea, http.StatusNotFound},
	{settings.ErrInvalidTheme, http.StatusBadRequest},
	{settings.ErrInvalidImage, http.StatusBadRequest},
	{settings.ErrUploadTooLarge, http.StatusRequestEntityTooLarge},
	{settings.ErrAvatarTooLarge, http.StatusRequestEntityTooLarge},
	{geocode.ErrEmptyQuery, http.StatusBadRequest},
	{weather.ErrNotConfigured, http.StatusServiceUnavailable},
}

// respondError writes err as {"error": ...}. Unrecognised errors are logged
// and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.AbortWithStatusJSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}

	slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
