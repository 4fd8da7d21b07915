package capture

import (
	"errors"

	"github.com/huyquang-bka/ptz-chp/src/models"
)

var ErrSourceClosed = errors.New("video source closed")

// VideoSource yields RGB frames from one camera stream. Read blocks until
// a frame is available or the stream fails.
type VideoSource interface {
	Read() (models.Frame, error)
	Close() error
}

// Opener opens the video stream described by a device's connection
// descriptor.
type Opener func(device models.Device) (VideoSource, error)

// Converter turns a frame into another pixel layout.
type Converter func(frame models.Frame) models.Frame
