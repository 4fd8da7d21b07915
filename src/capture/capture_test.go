package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/buffer"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	id       int
	reads    *atomic.Int64
	failFrom int64 // reads after this many fail, 0 never
	closed   atomic.Bool
}

func (s *fakeSource) Read() (models.Frame, error) {
	n := s.reads.Add(1)
	if s.closed.Load() {
		return models.Frame{}, ErrSourceClosed
	}
	if s.failFrom > 0 && n > s.failFrom {
		return models.Frame{}, errors.New("stream ended")
	}
	return models.Frame{
		Width:  1,
		Height: 1,
		Format: models.PixelFormatRGB,
		Data:   []byte{byte(s.id), 2, 3},
	}, nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeOpener struct {
	mu       sync.Mutex
	opens    map[int]int
	failures map[int]int // remaining failing opens per device
	failFrom int64
	reads    atomic.Int64
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{opens: map[int]int{}, failures: map[int]int{}}
}

func (o *fakeOpener) open(device models.Device) (VideoSource, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens[device.ID]++
	if o.failures[device.ID] > 0 {
		o.failures[device.ID]--
		return nil, errors.New("camera offline")
	}
	return &fakeSource{id: device.ID, reads: &o.reads, failFrom: o.failFrom}, nil
}

func (o *fakeOpener) count(id int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[id]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func startProducer(t *testing.T, opener *fakeOpener) (*Producer, *buffer.Slot[models.Frame], context.CancelFunc) {
	t.Helper()
	p := NewProducer(opener.open)
	p.RetryInterval = time.Millisecond
	p.FrameInterval = 0
	slot := buffer.NewSlot[models.Frame]()
	p.AddOutput("test", slot)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, slot, cancel
}

func TestProducerNeverBlocksOnFullSlot(t *testing.T) {
	opener := newFakeOpener()
	dropped := testutil.ToFloat64(metrics.FramesDropped.WithLabelValues("test"))
	p, slot, _ := startProducer(t, opener)
	p.SelectDevice(models.Device{ID: 1})

	waitFor(t, "many reads", func() bool { return opener.reads.Load() > 100 })
	if n := slot.Len(); n != 1 {
		t.Fatalf("slot occupancy should be 1, got %d", n)
	}
	if testutil.ToFloat64(metrics.FramesDropped.WithLabelValues("test")) <= dropped {
		t.Error("expected dropped frames to be counted")
	}
	frame, _ := slot.TryTake()
	if frame.Format != models.PixelFormatRGB || frame.Data[0] != 1 || frame.Timestamp.IsZero() {
		t.Errorf("expected a timestamped frame of device 1, got %+v", frame)
	}
	if !p.Connected() {
		t.Error("producer should report a connection")
	}
}

func TestProducerRetriesOpenForever(t *testing.T) {
	opener := newFakeOpener()
	opener.failures[7] = 5
	p, slot, _ := startProducer(t, opener)
	p.SelectDevice(models.Device{ID: 7})

	waitFor(t, "a frame", func() bool { return slot.Len() == 1 })
	if n := opener.count(7); n != 6 {
		t.Errorf("expected 6 opens, got %d", n)
	}
}

func TestProducerReopensAfterReadFailure(t *testing.T) {
	opener := newFakeOpener()
	opener.failFrom = 3
	p, _, _ := startProducer(t, opener)
	p.SelectDevice(models.Device{ID: 2})

	waitFor(t, "a reopen", func() bool { return opener.count(2) >= 2 })
}

func TestProducerSwitchesDevice(t *testing.T) {
	opener := newFakeOpener()
	p, slot, _ := startProducer(t, opener)
	p.SelectDevice(models.Device{ID: 1})
	waitFor(t, "device 1", func() bool { return opener.count(1) == 1 })

	p.SelectDevice(models.Device{ID: 4})
	waitFor(t, "frames of device 4", func() bool {
		frame, ok := slot.TryTake()
		return ok && frame.Data[2] == 4
	})
	// Selecting the same device again keeps the stream.
	p.SelectDevice(models.Device{ID: 4})
	time.Sleep(20 * time.Millisecond)
	if n := opener.count(4); n != 1 {
		t.Errorf("expected a single open of device 4, got %d", n)
	}
}

func TestProducerSwitchAbortsOpenRetry(t *testing.T) {
	opener := newFakeOpener()
	opener.failures[1] = 1 << 30
	p, slot, _ := startProducer(t, opener)
	p.SelectDevice(models.Device{ID: 1})
	waitFor(t, "failing opens", func() bool { return opener.count(1) > 3 })

	p.SelectDevice(models.Device{ID: 2})
	waitFor(t, "frames of device 2", func() bool {
		frame, ok := slot.TryTake()
		return ok && frame.Data[0] == 2
	})
}

type fakeUploader struct {
	err   error
	names []string
}

func (u *fakeUploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if string(data) != "jpeg" {
		return "", errors.New("unexpected image data")
	}
	u.names = append(u.names, filename)
	return "/images/" + filename, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	payloads []models.EventPayload
}

func (p *fakePublisher) Publish(topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.(models.EventPayload))
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func encodeFrame(frame models.Frame) ([]byte, error) {
	if !frame.Valid() {
		return nil, errors.New("invalid frame")
	}
	return []byte("jpeg"), nil
}

func testFrame() models.Frame {
	return models.Frame{Width: 2, Height: 2, Format: models.PixelFormatRGB, Data: make([]byte, 12)}
}

func TestEventConsumerPublishesUploadedImage(t *testing.T) {
	uploader, publisher := &fakeUploader{}, &fakePublisher{}
	c := NewEventConsumer(buffer.NewSlot[models.Frame](), encodeFrame, uploader, publisher, "ptz/events")

	if c.Handle(context.Background(), testFrame()) {
		t.Fatal("frames without a selected device should be dropped")
	}
	c.SelectDevice(models.Device{ID: 1, CheckPointID: 42})
	if !c.Handle(context.Background(), testFrame()) {
		t.Fatal("expected the event to be published")
	}
	if len(publisher.payloads) != 1 || publisher.topics[0] != "ptz/events" {
		t.Fatalf("unexpected publications %v %v", publisher.topics, publisher.payloads)
	}
	payload := publisher.payloads[0]
	if payload.CheckpointID != 42 || len(payload.ImagePaths) != 1 || payload.ImagePaths[0] != "/images/"+uploader.names[0] {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestEventConsumerDropsOnFailure(t *testing.T) {
	uploader, publisher := &fakeUploader{err: errors.New("503")}, &fakePublisher{}
	c := NewEventConsumer(buffer.NewSlot[models.Frame](), encodeFrame, uploader, publisher, "t")
	c.SelectDevice(models.Device{ID: 1})
	if c.Handle(context.Background(), testFrame()) || len(publisher.payloads) != 0 {
		t.Fatal("nothing should be published when the upload fails")
	}

	uploader.err = nil
	publisher.err = errors.New("not connected")
	if c.Handle(context.Background(), testFrame()) {
		t.Fatal("publish failure should be reported")
	}
	if c.Handle(context.Background(), models.Frame{Width: 4, Height: 4}) {
		t.Fatal("invalid frames cannot be encoded")
	}
}

func TestEventConsumerRun(t *testing.T) {
	in := buffer.NewSlot[models.Frame]()
	publisher := &fakePublisher{}
	c := NewEventConsumer(in, encodeFrame, &fakeUploader{}, publisher, "t")
	c.SelectDevice(models.Device{ID: 1, CheckPointID: 5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	in.Offer(testFrame())
	waitFor(t, "an event", func() bool { return publisher.count() == 1 })
	cancel()
	<-done
}
