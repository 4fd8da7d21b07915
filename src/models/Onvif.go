package models

// OnvifAction is received over MQTT to steer the bound camera remotely.
type OnvifAction struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// OnvifActionPTZ is the payload of a "ptz" action. A non-zero direction
// field starts a move, Center stops the camera.
type OnvifActionPTZ struct {
	Left   int     `json:"left"`
	Right  int     `json:"right"`
	Up     int     `json:"up"`
	Down   int     `json:"down"`
	Center int     `json:"center"`
	Zoom   float64 `json:"zoom"`
	Speed  int     `json:"speed"`
	Preset string  `json:"preset"`
}

// Direction resolves the payload to a single motion command.
func (a OnvifActionPTZ) Direction() Direction {
	switch {
	case a.Center == 1:
		return DirectionIdle
	case a.Left == 1:
		return DirectionLeft
	case a.Right == 1:
		return DirectionRight
	case a.Up == 1:
		return DirectionUp
	case a.Down == 1:
		return DirectionDown
	case a.Zoom > 0:
		return DirectionZoomIn
	case a.Zoom < 0:
		return DirectionZoomOut
	}
	return DirectionIdle
}

// Capabilities lists what the bound camera can do. It is filled in by
// the controller when a session is set up.
type Capabilities struct {
	ContinuousMove bool `json:"continuous_move"`
	AbsoluteMove   bool `json:"absolute_move"`
	RelativeMove   bool `json:"relative_move"`
	Stop           bool `json:"stop"`
	Status         bool `json:"status"`
	Presets        bool `json:"presets"`
}

// FullCapabilities is assumed when the camera does not describe its
// PTZ node.
func FullCapabilities() Capabilities {
	return Capabilities{
		ContinuousMove: true,
		AbsoluteMove:   true,
		RelativeMove:   true,
		Stop:           true,
		Status:         true,
		Presets:        true,
	}
}

// CameraPreset is a preset held in the camera's own memory.
type CameraPreset struct {
	Token    string    `json:"token"`
	Name     string    `json:"name"`
	Position *Position `json:"position,omitempty"`
}
