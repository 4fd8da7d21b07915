// Package opencv reads camera streams through OpenCV.
package opencv

import (
	"errors"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/capture"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"gocv.io/x/gocv"
)

var errEmptyFrame = errors.New("empty frame")

// Source is a VideoSource backed by a gocv.VideoCapture. It is not safe
// for concurrent use.
type Source struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	rgb     gocv.Mat
	path    string
}

// Open is a capture.Opener for the device's connection descriptor.
func Open(device models.Device) (capture.VideoSource, error) {
	webcam, err := gocv.OpenVideoCapture(device.DevicePath)
	if err != nil {
		return nil, err
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, errors.New("could not open stream of device " + device.Name)
	}
	// Keep latency low, the producer only wants the newest frame.
	webcam.Set(gocv.VideoCaptureBufferSize, 1)
	log.Log.Info("opencv.Open(): start reading device " + device.Name)
	return &Source{capture: webcam, mat: gocv.NewMat(), rgb: gocv.NewMat(), path: device.DevicePath}, nil
}

// Read returns the next frame as packed RGB bytes.
func (s *Source) Read() (models.Frame, error) {
	if s.capture == nil {
		return models.Frame{}, capture.ErrSourceClosed
	}
	if ok := s.capture.Read(&s.mat); !ok {
		return models.Frame{}, errors.New("device closed")
	}
	if s.mat.Empty() {
		return models.Frame{}, errEmptyFrame
	}
	gocv.CvtColor(s.mat, &s.rgb, gocv.ColorBGRToRGB)
	return models.Frame{
		Width:     s.rgb.Cols(),
		Height:    s.rgb.Rows(),
		Format:    models.PixelFormatRGB,
		Data:      s.rgb.ToBytes(),
		Timestamp: time.Now(),
	}, nil
}

func (s *Source) Close() error {
	if s.capture == nil {
		return nil
	}
	s.mat.Close()
	s.rgb.Close()
	err := s.capture.Close()
	s.capture = nil
	return err
}
