package capture

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huyquang-bka/ptz-chp/src/buffer"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/tevino/abool"
)

const (
	DefaultRetryInterval = time.Second
	DefaultFrameInterval = 10 * time.Millisecond
)

var errDeviceChanged = errors.New("device changed")

type output struct {
	name string
	slot *buffer.Slot[models.Frame]
}

// Producer reads frames from the selected device and hands them to its
// outputs. It never waits for a consumer: a frame is dropped for every
// output whose slot is still occupied.
type Producer struct {
	open          Opener
	outputs       []output
	RetryInterval time.Duration
	FrameInterval time.Duration

	selected  *buffer.Slot[models.Device]
	connected *abool.AtomicBool
}

func NewProducer(open Opener) *Producer {
	return &Producer{
		open:          open,
		RetryInterval: DefaultRetryInterval,
		FrameInterval: DefaultFrameInterval,
		selected:      buffer.NewSlot[models.Device](),
		connected:     abool.New(),
	}
}

// AddOutput registers a slot that receives every frame it has room for.
// Outputs must be added before Run.
func (p *Producer) AddOutput(name string, slot *buffer.Slot[models.Frame]) {
	p.outputs = append(p.outputs, output{name: name, slot: slot})
}

// SelectDevice switches the stream. Only the latest selection is kept.
func (p *Producer) SelectDevice(device models.Device) {
	p.selected.Replace(device)
}

// Connected reports whether a stream is open.
func (p *Producer) Connected() bool {
	return p.connected.IsSet()
}

func (p *Producer) Run(ctx context.Context) {
	log.Log.Info("capture.Run(): producer started")
	defer log.Log.Info("capture.Run(): producer stopped")

	var (
		device *models.Device
		source VideoSource
	)
	closeSource := func() {
		if source != nil {
			source.Close()
			source = nil
		}
		p.connected.UnSet()
	}
	defer closeSource()

	frames, since := 0, time.Now()
	for ctx.Err() == nil {
		if d, ok := p.selected.TryTake(); ok {
			if device == nil || !device.Same(d) {
				closeSource()
				log.Log.Info("capture.Run(): switching to device " + strconv.Itoa(d.ID))
			}
			device = &d
		}

		if device == nil {
			select {
			case d := <-p.selected.C():
				device = &d
			case <-ctx.Done():
			}
			continue
		}

		if source == nil {
			opened, err := p.openWithRetry(ctx, *device)
			if err != nil {
				continue
			}
			source = opened
			p.connected.Set()
		}

		frame, err := source.Read()
		if err != nil {
			log.Log.Error("capture.Run(): reading frame failed, reopening: " + err.Error())
			closeSource()
			metrics.SourceReconnects.Inc()
			sleep(ctx, p.RetryInterval)
			continue
		}
		metrics.FramesCaptured.Inc()
		frames++
		if elapsed := time.Since(since); elapsed >= time.Second {
			log.Log.Debug("capture.Run(): " + strconv.Itoa(frames) + " fps")
			frames, since = 0, time.Now()
		}

		if frame.Timestamp.IsZero() {
			frame.Timestamp = time.Now()
		}
		p.dispatch(frame)
		sleep(ctx, p.FrameInterval)
	}
}

func (p *Producer) dispatch(frame models.Frame) {
	for _, o := range p.outputs {
		if !o.slot.Offer(frame) {
			metrics.FramesDropped.WithLabelValues(o.name).Inc()
		}
	}
}

// openWithRetry keeps trying to open device until it succeeds, the context
// is done or another device is selected.
func (p *Producer) openWithRetry(ctx context.Context, device models.Device) (VideoSource, error) {
	var source VideoSource
	operation := func() error {
		if p.selected.Len() > 0 {
			return backoff.Permanent(errDeviceChanged)
		}
		s, err := p.open(device)
		if err != nil {
			return err
		}
		source = s
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Log.Error("capture.openWithRetry(): device " + strconv.Itoa(device.ID) + ": " + err.Error() + ", retrying in " + wait.String())
	}
	policy := backoff.WithContext(backoff.NewConstantBackOff(p.RetryInterval), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	log.Log.Info("capture.openWithRetry(): opened device " + strconv.Itoa(device.ID))
	return source, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
