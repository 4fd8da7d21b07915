package computervision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/buffer"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

func grayFrame(value byte) models.Frame {
	data := make([]byte, 8*8)
	for i := range data {
		data[i] = value
	}
	return models.Frame{Width: 8, Height: 8, Format: models.PixelFormatGray, Data: data}
}

func TestAbsDiffBitwiseAndThreshold(t *testing.T) {
	img1 := []byte{0, 0, 100, 0}
	img2 := []byte{0, 100, 0, 0}
	img3 := []byte{100, 100, 100, 10}
	// Only pixel 0 differs from both earlier images by more than 20.
	if n := AbsDiffBitwiseAndThreshold(img1, img2, img3, 20, []int{0, 1, 2, 3, 99}); n != 1 {
		t.Errorf("expected 1 change, got %d", n)
	}
}

func TestDetectNeedsThreeFrames(t *testing.T) {
	d := NewDetector(models.MotionConfig{ChangesThreshold: 2, SampleStep: 4}, nil)
	if motion, _ := d.Detect(grayFrame(0)); motion {
		t.Fatal("no motion without history")
	}
	if motion, _ := d.Detect(grayFrame(255)); motion {
		t.Fatal("no motion with two frames")
	}
	motion, changes := d.Detect(grayFrame(0))
	if motion {
		t.Errorf("the third frame equals the first, got %d changes", changes)
	}
	motion, changes = d.Detect(grayFrame(128))
	if !motion || changes != 4 {
		t.Errorf("expected motion on all 4 sampled pixels, got %v %d", motion, changes)
	}
	if motion, _ := d.Detect(models.Frame{}); motion {
		t.Error("invalid frames never show motion")
	}
}

func TestSelectDeviceResetsHistory(t *testing.T) {
	d := NewDetector(models.MotionConfig{ChangesThreshold: 2, SampleStep: 4}, nil)
	for i := 0; i < 5; i++ {
		d.Detect(grayFrame(20))
	}
	// The first frames of another camera only refill the history.
	d.SelectDevice(models.Device{ID: 2})
	if motion, changes := d.Detect(grayFrame(200)); motion {
		t.Fatalf("frame of the new camera compared with the old one, %d changes", changes)
	}
	if motion, _ := d.Detect(grayFrame(200)); motion {
		t.Fatal("no motion with two frames")
	}
	if motion, _ := d.Detect(grayFrame(200)); motion {
		t.Fatal("a still scene shows no motion")
	}

	// Without a switch the same jump is motion.
	d = NewDetector(models.MotionConfig{ChangesThreshold: 2, SampleStep: 4}, nil)
	for i := 0; i < 5; i++ {
		d.Detect(grayFrame(20))
	}
	if motion, _ := d.Detect(grayFrame(200)); !motion {
		t.Error("expected motion on the same camera")
	}
}

func TestDetectConvertsColourFrames(t *testing.T) {
	rgb := func(v byte) models.Frame {
		data := make([]byte, 8*8*3)
		for i := range data {
			data[i] = v
		}
		return models.Frame{Width: 8, Height: 8, Format: models.PixelFormatRGB, Data: data}
	}
	toGray := func(frame models.Frame) models.Frame {
		return grayFrame(frame.Data[0])
	}

	d := NewDetector(models.MotionConfig{ChangesThreshold: 2, SampleStep: 4}, nil)
	d.Detect(rgb(0))
	d.Detect(rgb(0))
	if motion, _ := d.Detect(rgb(255)); motion {
		t.Error("colour frames are ignored without a converter")
	}

	d = NewDetector(models.MotionConfig{ChangesThreshold: 2, SampleStep: 4}, toGray)
	d.Detect(rgb(0))
	d.Detect(rgb(0))
	if motion, _ := d.Detect(rgb(255)); !motion {
		t.Error("expected motion after conversion")
	}
}

func TestDetectRespectsRegion(t *testing.T) {
	d := NewDetector(models.MotionConfig{
		ChangesThreshold: 0,
		SampleStep:       4,
		Region: []models.Polygon{{
			ID:     "corner",
			Coords: []models.Coord{{X: -1, Y: -1}, {X: 2, Y: -1}, {X: 2, Y: 2}, {X: -1, Y: 2}},
		}},
	}, nil)
	d.Detect(grayFrame(0))
	d.Detect(grayFrame(0))
	_, changes := d.Detect(grayFrame(255))
	if changes != 1 {
		t.Errorf("only the corner pixel should be checked, got %d changes", changes)
	}
}

func TestRunAppliesCooldown(t *testing.T) {
	d := NewDetector(models.MotionConfig{ChangesThreshold: 1, SampleStep: 4, CooldownMs: 1000}, nil)
	var mu sync.Mutex
	clock := time.Unix(1000, 0)
	d.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	in, out := buffer.NewSlot[models.Frame](), buffer.NewSlot[models.Frame]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, in, out)
		close(done)
	}()
	feed := func(v byte) {
		in.Replace(grayFrame(v))
		for in.Len() != 0 {
			time.Sleep(time.Millisecond)
		}
	}

	feed(0)
	feed(0)
	feed(255)
	first, err := out.Take(ctxWithTimeout(t))
	if err != nil || first.Data[0] != 255 {
		t.Fatalf("expected the first moving frame, got %v %v", err, first.Data)
	}

	// Motion within the cooldown is ignored. The repeated frame shows no
	// motion and is only taken once the first one was handled.
	feed(128)
	feed(128)
	mu.Lock()
	clock = clock.Add(2 * time.Second)
	mu.Unlock()
	feed(0)
	cancel()
	<-done

	second, ok := out.TryTake()
	if !ok || second.Data[0] != 0 {
		t.Fatalf("expected the frame after the cooldown, got %v %v", ok, second.Data)
	}
}

func ctxWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
