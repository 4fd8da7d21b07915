package opencv

import (
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"gocv.io/x/gocv"
)

// Gray is a capture.Converter to one byte per pixel luma. Gray frames and
// frames that cannot be read are returned unchanged.
func Gray(frame models.Frame) models.Frame {
	if frame.Format == models.PixelFormatGray || !frame.Valid() {
		return frame
	}
	mat, err := toMat(frame)
	if err != nil {
		log.Log.Error("opencv.Gray(): " + err.Error())
		return frame
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	return models.Frame{
		Width:     gray.Cols(),
		Height:    gray.Rows(),
		Format:    models.PixelFormatGray,
		Data:      gray.ToBytes(),
		Timestamp: frame.Timestamp,
	}
}
