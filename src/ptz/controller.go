package ptz

import "github.com/huyquang-bka/ptz-chp/src/models"

// Controller is a control session with a single camera. Implementations
// never panic on camera errors: they log and return a zero value (false,
// nil or "").
type Controller interface {
	Setup(device models.Device) (models.Capabilities, error)
	ContinuousMove(pan, tilt, zoom float64) bool
	AbsoluteMove(position models.Position, speed float64) bool
	RelativeMove(pan, tilt, zoom float64) bool
	Stop(panTilt, zoom bool) bool
	GetStatus() *models.Position
	GetPresets() []models.CameraPreset
	SavePreset(name string) string
	GotoPreset(token string, speed float64) bool
	RemovePreset(token string) bool
}

// PresetStore is the durable preset storage the loop writes through.
type PresetStore interface {
	Get(cameraID string) []models.Preset
	Find(cameraID, token string) (models.Preset, bool)
	Save(cameraID, name string, position *models.Position) (string, error)
	Update(cameraID, token string, name *string, position *models.Position) (bool, error)
	Delete(cameraID, token string) (bool, error)
}

// ControllerFactory returns a fresh, not yet set up controller. A new one
// is made for every rebind.
type ControllerFactory func() Controller
