package computervision

import (
	"context"
	"strconv"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/buffer"
	"github.com/huyquang-bka/ptz-chp/src/capture"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
	geo "github.com/kellydunn/golang-geo"
	"github.com/tevino/abool"
)

const (
	DefaultPixelThreshold   = 25
	DefaultChangesThreshold = 150
	DefaultSampleStep       = 4
)

// Detector decides which frames are interesting. It compares every frame
// with the two before it and reports motion when enough sampled pixels
// changed in both comparisons.
type Detector struct {
	PixelThreshold   int
	ChangesThreshold int
	SampleStep       int
	Cooldown         time.Duration

	regions []geo.Polygon
	now     func() time.Time
	gray    capture.Converter
	reset   *abool.AtomicBool

	images      [3][]byte
	filled      int
	width       int
	height      int
	coordinates []int
	lastEvent   time.Time
}

// NewDetector builds a detector. gray converts colour frames; without it
// only gray frames are inspected.
func NewDetector(config models.MotionConfig, gray capture.Converter) *Detector {
	d := &Detector{
		PixelThreshold:   config.PixelThreshold,
		ChangesThreshold: config.ChangesThreshold,
		SampleStep:       config.SampleStep,
		Cooldown:         config.Cooldown(),
		now:              time.Now,
		gray:             gray,
		reset:            abool.New(),
	}
	if d.PixelThreshold <= 0 {
		d.PixelThreshold = DefaultPixelThreshold
	}
	if d.ChangesThreshold <= 0 {
		d.ChangesThreshold = DefaultChangesThreshold
	}
	if d.SampleStep <= 0 {
		d.SampleStep = DefaultSampleStep
	}

	// Calculate mask
	for _, polygon := range config.Region {
		poly := geo.Polygon{}
		for _, c := range polygon.Coords {
			poly.Add(geo.NewPoint(c.X, c.Y))
		}
		d.regions = append(d.regions, poly)
	}
	return d
}

// Reset forgets the frame history before the next frame. It is safe to
// call while Run is reading frames.
func (d *Detector) Reset() {
	d.reset.Set()
}

// SelectDevice drops the history of the previous camera, so its frames are
// never compared with the new camera's.
func (d *Detector) SelectDevice(device models.Device) {
	log.Log.Debug("computervision.SelectDevice(): history reset for device " + strconv.Itoa(device.ID))
	d.Reset()
}

// Detect feeds one frame and reports whether it shows motion and how many
// sampled pixels changed. The first two frames only fill the history.
func (d *Detector) Detect(frame models.Frame) (bool, int) {
	if d.reset.SetToIf(true, false) {
		d.filled = 0
	}
	gray := frame
	if gray.Format != models.PixelFormatGray {
		if d.gray == nil {
			return false, 0
		}
		gray = d.gray(frame)
	}
	if !gray.Valid() || gray.Format != models.PixelFormatGray {
		return false, 0
	}
	if gray.Width != d.width || gray.Height != d.height {
		d.width, d.height = gray.Width, gray.Height
		d.coordinates = d.coordinatesToCheck()
		d.filled = 0
	}

	if d.filled < 3 {
		d.images[d.filled] = gray.Data
		d.filled++
		if d.filled < 3 {
			return false, 0
		}
	} else {
		d.images[0], d.images[1], d.images[2] = d.images[1], d.images[2], gray.Data
	}
	return FindMotion(d.images, d.coordinates, d.PixelThreshold, d.ChangesThreshold)
}

// coordinatesToCheck lists the pixel offsets on the sample grid that lie
// within one of the regions, or all grid offsets without regions.
func (d *Detector) coordinatesToCheck() []int {
	var coordinates []int
	for y := 0; y < d.height; y += d.SampleStep {
		for x := 0; x < d.width; x += d.SampleStep {
			if d.inRegion(x, y) {
				coordinates = append(coordinates, y*d.width+x)
			}
		}
	}
	return coordinates
}

func (d *Detector) inRegion(x, y int) bool {
	if len(d.regions) == 0 {
		return true
	}
	point := geo.NewPoint(float64(x), float64(y))
	for i := range d.regions {
		if d.regions[i].Contains(point) {
			return true
		}
	}
	return false
}

// Run reads frames from in and offers the ones with motion to out, at
// most one per cooldown period.
func (d *Detector) Run(ctx context.Context, in, out *buffer.Slot[models.Frame]) {
	log.Log.Info("computervision.Run(): motion detection enabled")
	for {
		frame, err := in.Take(ctx)
		if err != nil {
			log.Log.Info("computervision.Run(): stopped")
			return
		}
		motion, changes := d.Detect(frame)
		if !motion {
			continue
		}
		now := d.now()
		if !d.lastEvent.IsZero() && now.Sub(d.lastEvent) < d.Cooldown {
			continue
		}
		d.lastEvent = now
		log.Log.Debug("computervision.Run(): motion detected, " + strconv.Itoa(changes) + " changes")
		if !out.Offer(frame) {
			metrics.FramesDropped.WithLabelValues("events").Inc()
		}
	}
}

// FindMotion reports whether the number of changed pixels exceeds
// changesThreshold.
func FindMotion(imageArray [3][]byte, coordinatesToCheck []int, pixelChangeThreshold, changesThreshold int) (thresholdReached bool, changesDetected int) {
	changes := AbsDiffBitwiseAndThreshold(imageArray[0], imageArray[1], imageArray[2], pixelChangeThreshold, coordinatesToCheck)
	return changes > changesThreshold, changes
}

// AbsDiffBitwiseAndThreshold counts the pixels of img3 that differ by more
// than threshold from both img1 and img2.
func AbsDiffBitwiseAndThreshold(img1, img2, img3 []byte, threshold int, coordinatesToCheck []int) int {
	changes := 0
	for _, pixel := range coordinatesToCheck {
		if pixel >= len(img1) || pixel >= len(img2) || pixel >= len(img3) {
			continue
		}
		diff := int(img3[pixel]) - int(img1[pixel])
		diff2 := int(img3[pixel]) - int(img2[pixel])
		if (diff > threshold || diff < -threshold) && (diff2 > threshold || diff2 < -threshold) {
			changes++
		}
	}
	return changes
}
