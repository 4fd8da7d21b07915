package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huyquang-bka/ptz-chp/src/cloud"
	"github.com/huyquang-bka/ptz-chp/src/fetch"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/huyquang-bka/ptz-chp/src/ptz"
	"github.com/huyquang-bka/ptz-chp/src/routers/websocket"
)

// PTZ is the motion loop of the selected camera.
type PTZ interface {
	Move(direction models.Direction)
	Stop()
	SetSpeed(v int) int
	Status() ptz.Status
	FetchPresets() []models.Preset
	SavePreset(name string) (string, bool)
	GotoPreset(token string) bool
	UpdatePresetName(token, name string) bool
	UpdatePresetPosition(token string) bool
	DeletePreset(token string) bool
	StartTour(delay time.Duration) bool
	StopTour() bool
}

// DeviceDirectory holds the PTZ devices and the current selection.
type DeviceDirectory interface {
	Devices() []models.Device
	ReloadDevices(ctx context.Context) fetch.Outcome[models.Device]
	SelectDevice(id int) (models.Device, bool)
}

// Handlers bundles what the routes act on. Hub may be nil.
type Handlers struct {
	Presets ptz.PresetStore
	PTZ     PTZ
	Devices DeviceDirectory
	Images  cloud.Uploader
	Hub     *websocket.Hub
}

func AddRoutes(r *gin.Engine, h *Handlers) *gin.RouterGroup {
	if h.Hub != nil {
		r.GET("/ws", h.Hub.WebsocketHandler)
	}

	api := r.Group("/api")
	{
		api.GET("/presets/:camera_id", h.GetPresets)
		api.POST("/presets/:camera_id", h.CreatePreset)
		api.PUT("/presets/:camera_id/:token", h.UpdatePreset)
		api.DELETE("/presets/:camera_id/:token", h.DeletePreset)

		api.POST("/save-image", h.SaveImage)

		api.GET("/devices", h.GetDevices)
		api.POST("/devices/reload", h.ReloadDevices)

		api.POST("/ptz/select", h.SelectDevice)
		api.POST("/ptz/move", h.Move)
		api.POST("/ptz/stop", h.Stop)
		api.POST("/ptz/speed", h.SetSpeed)
		api.GET("/ptz/status", h.Status)
		api.GET("/ptz/presets", h.FetchPresets)
		api.POST("/ptz/presets", h.SavePreset)
		api.POST("/ptz/presets/:token/goto", h.GotoPreset)
		api.PUT("/ptz/presets/:token", h.RenamePreset)
		api.POST("/ptz/presets/:token/position", h.UpdatePresetPosition)
		api.DELETE("/ptz/presets/:token", h.DeleteBoundPreset)
		api.POST("/ptz/tour", h.StartTour)
		api.DELETE("/ptz/tour", h.StopTour)
	}
	return api
}
