package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huyquang-bka/ptz-chp/src/cloud"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// cameraID validates the camera id path parameter.
func cameraID(c *gin.Context) (string, bool) {
	id, err := strconv.Atoi(c.Param("camera_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "camera_id must be an integer"})
		return "", false
	}
	return strconv.Itoa(id), true
}

// GetPresets returns the presets of a camera, an empty list when it has
// none.
func (h *Handlers) GetPresets(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	list := h.Presets.Get(id)
	if list == nil {
		list = []models.Preset{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) CreatePreset(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var request models.PresetRequest
	if err := c.BindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "a preset needs a name"})
		return
	}
	token, err := h.Presets.Save(id, request.Name, request.Position)
	if err != nil {
		log.Log.Error("http.CreatePreset(): " + err.Error())
		c.JSON(http.StatusInternalServerError, models.APIResponse{Message: "Failed to save preset"})
		return
	}
	h.notifyPresets()
	c.JSON(http.StatusOK, gin.H{
		"message": "Preset saved successfully",
		"token":   token,
	})
}

func (h *Handlers) UpdatePreset(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	var request models.PresetUpdateRequest
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "invalid preset update"})
		return
	}
	updated, err := h.Presets.Update(id, c.Param("token"), request.Name, request.Position)
	if err != nil {
		log.Log.Error("http.UpdatePreset(): " + err.Error())
		c.JSON(http.StatusInternalServerError, models.APIResponse{Message: err.Error()})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, models.APIResponse{Message: "Preset not found"})
		return
	}
	h.notifyPresets()
	c.JSON(http.StatusOK, models.APIResponse{Message: "Preset updated successfully"})
}

func (h *Handlers) DeletePreset(c *gin.Context) {
	id, ok := cameraID(c)
	if !ok {
		return
	}
	deleted, err := h.Presets.Delete(id, c.Param("token"))
	if err != nil {
		log.Log.Error("http.DeletePreset(): " + err.Error())
		c.JSON(http.StatusInternalServerError, models.APIResponse{Message: err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, models.APIResponse{Message: "Preset not found"})
		return
	}
	h.notifyPresets()
	c.JSON(http.StatusOK, models.APIResponse{Message: "Preset deleted successfully"})
}

// notifyPresets lets subscribers of the bound camera see changes made
// through the store directly.
func (h *Handlers) notifyPresets() {
	if h.PTZ != nil {
		h.PTZ.FetchPresets()
	}
}

// SaveImage stores an uploaded image under a generated name.
func (h *Handlers) SaveImage(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Message: "missing file"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.APIResponse{Message: err.Error()})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.APIResponse{Message: err.Error()})
		return
	}

	filename := cloud.ImageName(time.Now())
	path, err := h.Images.Upload(c.Request.Context(), filename, data)
	if err != nil {
		log.Log.Error("http.SaveImage(): " + err.Error())
		c.JSON(http.StatusInternalServerError, models.APIResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.ImageUploadResponse{
		Message:  "Image saved successfully",
		Filename: filename,
		Path:     path,
	})
}
