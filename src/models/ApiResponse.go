package models

type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message interface{} `json:"message"`
}

// ImageUploadResponse is returned by the save-image endpoint. Path is the
// reference that ends up in event payloads.
type ImageUploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

type PresetRequest struct {
	Name     string    `json:"name"`
	Position *Position `json:"position,omitempty"`
}

type PresetUpdateRequest struct {
	Name     *string   `json:"name,omitempty"`
	Position *Position `json:"position,omitempty"`
}

type SelectDeviceRequest struct {
	DeviceID int `json:"device_id" binding:"required"`
}

type MoveRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type SpeedRequest struct {
	Speed int `json:"speed" binding:"required"`
}

// TourRequest starts a preset tour. DelayMs is the wait at each preset,
// 0 for the default.
type TourRequest struct {
	DelayMs int `json:"delay_ms"`
}
