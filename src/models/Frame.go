package models

import "time"

type PixelFormat string

const (
	PixelFormatBGR  PixelFormat = "bgr24"
	PixelFormatRGB  PixelFormat = "rgb24"
	PixelFormatGray PixelFormat = "gray8"
)

// Frame is a raw raster image. Data holds Height rows of Width pixels,
// three bytes per pixel for the colour formats and one for gray.
type Frame struct {
	Width     int
	Height    int
	Format    PixelFormat
	Data      []byte
	Timestamp time.Time
}

func (f Frame) BytesPerPixel() int {
	if f.Format == PixelFormatGray {
		return 1
	}
	return 3
}

func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) >= f.Width*f.Height*f.BytesPerPixel()
}
