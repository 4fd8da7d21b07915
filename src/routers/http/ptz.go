package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huyquang-bka/ptz-chp/src/fetch"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

func (h *Handlers) GetDevices(c *gin.Context) {
	devices := h.Devices.Devices()
	if devices == nil {
		devices = []models.Device{}
	}
	c.JSON(http.StatusOK, models.APIResponse{Data: devices})
}

// ReloadDevices fetches the device list again. A fetch that runs past its
// deadline is reported as 504, a failed one as 502.
func (h *Handlers) ReloadDevices(c *gin.Context) {
	outcome := h.Devices.ReloadDevices(c.Request.Context())
	switch outcome.Kind {
	case fetch.Success:
		c.JSON(http.StatusOK, models.APIResponse{Data: outcome.Items, Message: "Devices loaded"})
	case fetch.Timeout:
		c.JSON(http.StatusGatewayTimeout, models.APIResponse{Message: outcome.Message})
	default:
		c.JSON(http.StatusBadGateway, models.APIResponse{Message: outcome.Message})
	}
}

func (h *Handlers) SelectDevice(c *gin.Context) {
	var request models.SelectDeviceRequest
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "device_id is required"})
		return
	}
	device, ok := h.Devices.SelectDevice(request.DeviceID)
	if !ok {
		c.JSON(http.StatusNotFound, models.APIResponse{Message: "Device not found"})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Data: device, Message: "Device selected"})
}

func (h *Handlers) Move(c *gin.Context) {
	var request models.MoveRequest
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "direction is required"})
		return
	}
	direction, err := models.ParseDirection(request.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: err.Error()})
		return
	}
	if direction == models.DirectionIdle {
		h.PTZ.Stop()
	} else {
		h.PTZ.Move(direction)
	}
	c.JSON(http.StatusOK, models.APIResponse{Data: direction})
}

func (h *Handlers) Stop(c *gin.Context) {
	h.PTZ.Stop()
	c.JSON(http.StatusOK, models.APIResponse{Message: "Stopped"})
}

func (h *Handlers) SetSpeed(c *gin.Context) {
	var request models.SpeedRequest
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "speed is required"})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Data: h.PTZ.SetSpeed(request.Speed)})
}

func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, models.APIResponse{Data: h.PTZ.Status()})
}

func (h *Handlers) FetchPresets(c *gin.Context) {
	list := h.PTZ.FetchPresets()
	if list == nil {
		list = []models.Preset{}
	}
	c.JSON(http.StatusOK, models.APIResponse{Data: list})
}

func (h *Handlers) SavePreset(c *gin.Context) {
	var request models.PresetRequest
	if err := c.BindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "a preset needs a name"})
		return
	}
	token, ok := h.PTZ.SavePreset(request.Name)
	if !ok {
		c.JSON(http.StatusConflict, models.APIResponse{Message: "No camera bound or preset could not be saved"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Preset saved successfully",
		"token":   token,
	})
}

func (h *Handlers) GotoPreset(c *gin.Context) {
	h.result(c, h.PTZ.GotoPreset(c.Param("token")), "Preset recalled")
}

func (h *Handlers) RenamePreset(c *gin.Context) {
	var request models.PresetRequest
	if err := c.BindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "a preset needs a name"})
		return
	}
	h.result(c, h.PTZ.UpdatePresetName(c.Param("token"), request.Name), "Preset updated successfully")
}

func (h *Handlers) UpdatePresetPosition(c *gin.Context) {
	h.result(c, h.PTZ.UpdatePresetPosition(c.Param("token")), "Preset position updated")
}

func (h *Handlers) DeleteBoundPreset(c *gin.Context) {
	h.result(c, h.PTZ.DeletePreset(c.Param("token")), "Preset deleted successfully")
}

// StartTour recalls every preset of the bound camera in turn. The body is
// optional.
func (h *Handlers) StartTour(c *gin.Context) {
	var request models.TourRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil || request.DelayMs < 0 {
			c.JSON(http.StatusBadRequest, models.APIResponse{Message: "delay_ms must be a positive number"})
			return
		}
	}
	if !h.PTZ.StartTour(time.Duration(request.DelayMs) * time.Millisecond) {
		c.JSON(http.StatusConflict, models.APIResponse{Message: "No camera bound, no presets or a tour is already running"})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Message: "Tour started"})
}

func (h *Handlers) StopTour(c *gin.Context) {
	if !h.PTZ.StopTour() {
		c.JSON(http.StatusNotFound, models.APIResponse{Message: "No tour running"})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Message: "Tour stopped"})
}

// result maps the boolean outcome of a preset operation: false means the
// preset or a bound camera is missing.
func (h *Handlers) result(c *gin.Context, ok bool, message string) {
	if !ok {
		c.JSON(http.StatusNotFound, models.APIResponse{Message: "Preset not found or not supported"})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Message: message})
}
