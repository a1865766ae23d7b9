package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mr1hm/floodsense/internal/geo"
	"github.com/mr1hm/floodsense/internal/geocode"
	"github.com/mr1hm/floodsense/internal/livesync"
	"github.com/mr1hm/floodsense/internal/overlay"
	"github.com/mr1hm/floodsense/internal/repository"
	"github.com/mr1hm/floodsense/internal/routing"
	"github.com/mr1hm/floodsense/internal/session"
	"github.com/mr1hm/floodsense/internal/settings"
	"github.com/mr1hm/floodsense/internal/weather"
)

type WeatherService interface {
	Current(ctx context.Context, p *geo.Point) (*weather.Conditions, error)
}

type GeocodeService interface {
	Search(ctx context.Context, query string) ([]geocode.Place, error)
}

type Deps struct {
	Hub       *livesync.Hub
	Sessions  *session.Bridge
	Settings  *settings.Service
	Repo      *repository.Repository
	Navigator *routing.Navigator
	Overlays  *overlay.Set
	Weather   WeatherService
	Geocoder  GeocodeService
}

type Handler struct {
	Deps
	upgrader websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		Deps: d,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/ws", h.requireAuth, h.liveFeed)

	pub := r.Group("/api/auth")
	pub.POST("/signup", h.signUp)
	pub.POST("/login", h.signIn)

	api := r.Group("/api", h.requireAuth)
	api.POST("/auth/logout", h.signOut)
	api.GET("/auth/me", h.me)

	api.GET("/alerts", h.listAlerts)
	api.POST("/alerts", h.addAlert)
	api.DELETE("/alerts", h.clearAlerts)
	api.POST("/alerts/:id/read", h.markRead)
	api.GET("/alerts/export", h.exportAlerts)
	api.POST("/broadcast", h.broadcast)

	api.GET("/shelters", h.shelters)
	api.GET("/coordinators", h.coordinators)
	api.GET("/resources", h.resources)
	api.GET("/flood-levels", h.floodLevels)
	api.GET("/weather", h.weather)
	api.GET("/geocode", h.geocode)

	api.GET("/map/overlays", h.overlays)
	api.GET("/map/districts", h.districts)
	api.GET("/map/areas/:name", h.area)
	api.GET("/map/distance", h.distance)
	api.POST("/map/exit-point", h.exitPoint)
	api.POST("/routes", h.route)
	api.POST("/routes/shelters", h.shelterRoutes)

	api.GET("/settings", h.getSettings)
	api.PUT("/settings", h.saveProfile)
	api.PUT("/settings/preferences", h.savePreferences)
	api.PUT("/settings/security", h.saveSecurity)
	api.POST("/settings/avatar", h.uploadAvatar)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"listeners": h.Hub.ListenerCount(),
	})
}
