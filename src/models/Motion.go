package models

import "fmt"

type Direction string

const (
	DirectionIdle    Direction = "idle"
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionLeft    Direction = "left"
	DirectionRight   Direction = "right"
	DirectionZoomIn  Direction = "zoom_in"
	DirectionZoomOut Direction = "zoom_out"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionIdle, DirectionUp, DirectionDown, DirectionLeft,
		DirectionRight, DirectionZoomIn, DirectionZoomOut:
		return d, nil
	}
	return DirectionIdle, fmt.Errorf("unknown direction %q", s)
}

// Vector returns the unit pan, tilt and zoom components of a direction.
func (d Direction) Vector() (pan, tilt, zoom float64) {
	switch d {
	case DirectionUp:
		return 0, 1, 0
	case DirectionDown:
		return 0, -1, 0
	case DirectionLeft:
		return -1, 0, 0
	case DirectionRight:
		return 1, 0, 0
	case DirectionZoomIn:
		return 0, 0, 1
	case DirectionZoomOut:
		return 0, 0, -1
	}
	return 0, 0, 0
}

const (
	MinSpeed     = 1
	MaxSpeed     = 10
	DefaultSpeed = 5
)

func ClampSpeed(v int) int {
	if v < MinSpeed {
		return MinSpeed
	}
	if v > MaxSpeed {
		return MaxSpeed
	}
	return v
}

// SpeedMultiplier maps a speed to a velocity factor, 5 being 1.0.
func SpeedMultiplier(v int) float64 {
	return float64(ClampSpeed(v)) / DefaultSpeed
}

type Position struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
	Zoom float64 `json:"zoom"`
}
