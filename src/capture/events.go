package capture

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/buffer"
	"github.com/huyquang-bka/ptz-chp/src/cloud"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// Publisher sends a JSON document to a topic of the message bus.
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// Encoder turns a frame into an image file.
type Encoder func(frame models.Frame) ([]byte, error)

// EventConsumer turns interesting frames into events: it uploads each
// frame and publishes where it was stored. Delivery is at most once, a
// failed frame is dropped.
type EventConsumer struct {
	in        *buffer.Slot[models.Frame]
	encode    Encoder
	uploader  cloud.Uploader
	publisher Publisher
	topic     string

	mu     sync.Mutex
	device *models.Device
}

func NewEventConsumer(in *buffer.Slot[models.Frame], encode Encoder, uploader cloud.Uploader, publisher Publisher, topic string) *EventConsumer {
	return &EventConsumer{
		in:        in,
		encode:    encode,
		uploader:  uploader,
		publisher: publisher,
		topic:     topic,
	}
}

// SelectDevice sets the device whose checkpoint labels the events.
func (c *EventConsumer) SelectDevice(device models.Device) {
	c.mu.Lock()
	c.device = &device
	c.mu.Unlock()
}

func (c *EventConsumer) Run(ctx context.Context) {
	log.Log.Info("capture.EventConsumer.Run(): started")
	for {
		frame, err := c.in.Take(ctx)
		if err != nil {
			log.Log.Info("capture.EventConsumer.Run(): stopped")
			return
		}
		c.Handle(ctx, frame)
	}
}

// Handle processes a single frame and reports whether an event was
// published.
func (c *EventConsumer) Handle(ctx context.Context, frame models.Frame) bool {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()
	if device == nil {
		metrics.Events.WithLabelValues("skipped").Inc()
		return false
	}

	data, err := c.encode(frame)
	if err != nil {
		log.Log.Error("capture.EventConsumer.Handle(): encoding failed: " + err.Error())
		metrics.Events.WithLabelValues("upload_failed").Inc()
		return false
	}
	stamp := frame.Timestamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	reference, err := c.uploader.Upload(ctx, cloud.ImageName(stamp), data)
	if err != nil {
		log.Log.Error("capture.EventConsumer.Handle(): upload failed: " + err.Error())
		metrics.Events.WithLabelValues("upload_failed").Inc()
		return false
	}

	payload := models.EventPayload{
		CheckpointID: device.CheckPointID,
		ImagePaths:   []string{reference},
	}
	if err := c.publisher.Publish(c.topic, payload); err != nil {
		log.Log.Error("capture.EventConsumer.Handle(): publish failed: " + err.Error())
		metrics.Events.WithLabelValues("publish_failed").Inc()
		return false
	}
	log.Log.Info("capture.EventConsumer.Handle(): event for checkpoint " + strconv.Itoa(device.CheckPointID) + " published, image " + reference)
	metrics.Events.WithLabelValues("published").Inc()
	return true
}
