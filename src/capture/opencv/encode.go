package opencv

import (
	"errors"

	"github.com/huyquang-bka/ptz-chp/src/capture"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"gocv.io/x/gocv"
)

// JPEGEncoder encodes frames with OpenCV's JPEG codec.
func JPEGEncoder(quality int) capture.Encoder {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return func(frame models.Frame) ([]byte, error) {
		if !frame.Valid() {
			return nil, errors.New("invalid frame")
		}
		mat, err := toMat(frame)
		if err != nil {
			return nil, err
		}
		defer mat.Close()
		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
		if err != nil {
			return nil, err
		}
		defer buf.Close()
		out := make([]byte, buf.Len())
		copy(out, buf.GetBytes())
		return out, nil
	}
}

// toMat copies a frame into a BGR (or gray) Mat, the layout OpenCV's
// encoders expect.
func toMat(frame models.Frame) (gocv.Mat, error) {
	size := frame.Width * frame.Height * frame.BytesPerPixel()
	if frame.Format == models.PixelFormatGray {
		return gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC1, frame.Data[:size])
	}
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data[:size])
	if err != nil {
		return mat, err
	}
	if frame.Format == models.PixelFormatRGB {
		bgr := gocv.NewMat()
		gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)
		mat.Close()
		return bgr, nil
	}
	return mat, nil
}
