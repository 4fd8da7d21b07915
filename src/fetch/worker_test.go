package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/models"
)

type lister struct {
	delay   time.Duration
	devices []models.Device
	err     error
	done    chan struct{}
}

func (l *lister) ListDevices(ctx context.Context) ([]models.Device, error) {
	defer func() {
		if l.done != nil {
			close(l.done)
		}
	}()
	select {
	case <-time.After(l.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.devices, l.err
}

func devices() []models.Device {
	return []models.Device{
		{ID: 1, Name: "PTZ Gate", DeviceFunctionID: 2},
		{ID: 2, Name: "Lobby", DeviceFunctionID: 1},
		{ID: 3, Name: "PTZ Yard", DeviceFunctionID: 2},
	}
}

func TestSuccessIsFiltered(t *testing.T) {
	w := DeviceWorker(&lister{devices: devices()}, 2, time.Second)
	o := w.Run(context.Background())
	if o.Kind != Success {
		t.Fatalf("expected success, got %+v", o)
	}
	if len(o.Items) != 2 || o.Items[0].ID != 1 || o.Items[1].ID != 3 {
		t.Errorf("unexpected filtered devices %+v", o.Items)
	}
}

func TestFailureCarriesMessage(t *testing.T) {
	w := DeviceWorker(&lister{err: errors.New("No access token available")}, 2, time.Second)
	o := w.Run(context.Background())
	if o.Kind != Failure || o.Message != "No access token available" {
		t.Fatalf("unexpected outcome %+v", o)
	}
}

func TestTimeoutReportsExactlyOnce(t *testing.T) {
	l := &lister{delay: 200 * time.Millisecond, devices: devices(), done: make(chan struct{})}
	w := DeviceWorker(l, 2, 50*time.Millisecond)

	start := time.Now()
	ch := w.Start(context.Background())
	o := <-ch
	if o.Kind != Timeout {
		t.Fatalf("expected timeout, got %+v", o)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("timeout reported late: %v", elapsed)
	}

	// The abandoned request finishes (its context was cancelled) and must
	// not produce a second outcome.
	select {
	case <-l.done:
	case <-time.After(time.Second):
		t.Fatal("abandoned request never returned")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second outcome %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFastResponseBeatsDeadline(t *testing.T) {
	w := DeviceWorker(&lister{delay: 5 * time.Millisecond, devices: devices()}, 1, 500*time.Millisecond)
	o := w.Run(context.Background())
	if o.Kind != Success || len(o.Items) != 1 || o.Items[0].ID != 2 {
		t.Fatalf("unexpected outcome %+v", o)
	}
}
