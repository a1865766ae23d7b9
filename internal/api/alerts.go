package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/mr1hm/floodsense/internal/models"
	"github.com/mr1hm/floodsense/internal/repository"
)

const exportSheet = "Alerts"

// listAlerts serves the live mirror, or queries the store when any filter
// is given.
func (h *Handler) listAlerts(c *gin.Context) {
	filter := repository.Filter{}
	filtered := false

	if t := c.Query("type"); t != "" {
		at := models.AlertType(t)
		if !at.Valid() {
			badRequest(c, "unknown alert type")
			return
		}
		filter.Type = &at
		filtered = true
	}
	if r := c.Query("read"); r != "" {
		read, err := strconv.ParseBool(r)
		if err != nil {
			badRequest(c, "read must be true or false")
			return
		}
		filter.Read = &read
		filtered = true
	}
	if d := c.Query("district"); d != "" {
		filter.District = d
		filtered = true
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
			filtered = true
		}
	}

	alerts := h.Hub.Alerts()
	if filtered {
		var err error
		alerts, err = h.Repo.ListAlerts(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":      alerts,
		"unreadCount": h.Hub.UnreadCount(),
	})
}

func (h *Handler) addAlert(c *gin.Context) {
	var req models.NewAlert
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title and type are required")
		return
	}

	alert, err := h.Hub.AddAlert(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) markRead(c *gin.Context) {
	if err := h.Hub.MarkAlertAsRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearAlerts(c *gin.Context) {
	n, err := h.Hub.ClearAllAlerts(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to clear alerts",
			"deleted": n,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) broadcast(c *gin.Context) {
	var req struct {
		Message  string `json:"message"`
		District string `json:"district"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid broadcast")
		return
	}

	alert, err := h.Hub.SendEmergencyBroadcast(c.Request.Context(), req.Message, req.District)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) exportAlerts(c *gin.Context) {
	f, err := alertWorkbook(h.Hub.Alerts())
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	name := fmt.Sprintf("alerts-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func alertWorkbook(alerts []models.Alert) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}

	header := []any{"Time", "Type", "Severity", "Title", "Message", "District", "Location", "Read"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	for i, a := range alerts {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			a.Timestamp.UTC().Format(time.RFC3339),
			string(a.Type),
			string(a.Severity),
			a.Title,
			a.Message,
			a.District,
			a.Location,
			a.Read,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetColWidth(exportSheet, "A", "A", 22)
	f.SetColWidth(exportSheet, "D", "E", 40)
	return f, nil
}

func (h *Handler) shelters(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Shelters())
}

func (h *Handler) coordinators(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Coordinators())
}

func (h *Handler) resources(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Resources())
}

func (h *Handler) floodLevels(c *gin.Context) {
	levels, err := h.Repo.FloodLevels(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if levels == nil {
		c.JSON(http.StatusOK, models.FloodLevels{TimeToPeak: "N/A"})
		return
	}
	c.JSON(http.StatusOK, levels)
}

func (h *Handler) weather(c *gin.Context) {
	p, ok, err := queryPoint(c, "lat", "lng")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	cond, err := h.Weather.Current(c.Request.Context(), optionalPoint(p, ok))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cond)
}

func (h *Handler) geocode(c *gin.Context) {
	places, err := h.Geocoder.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, places)
}
