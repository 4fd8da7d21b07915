package websocket

import (
	"context"
	"sync"

	"github.com/huyquang-bka/ptz-chp/src/buffer"
	"github.com/huyquang-bka/ptz-chp/src/capture"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// LiveView encodes the frames of the live slot and fans them out to the
// viewers. Each viewer only ever holds the newest image.
type LiveView struct {
	in     *buffer.Slot[models.Frame]
	encode capture.Encoder

	mu      sync.Mutex
	viewers map[int]*buffer.Slot[[]byte]
	next    int
}

func NewLiveView(in *buffer.Slot[models.Frame], encode capture.Encoder) *LiveView {
	return &LiveView{in: in, encode: encode, viewers: map[int]*buffer.Slot[[]byte]{}}
}

// Subscribe registers a viewer. The returned function unregisters it.
func (l *LiveView) Subscribe() (*buffer.Slot[[]byte], func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.next
	l.next++
	slot := buffer.NewSlot[[]byte]()
	l.viewers[id] = slot
	return slot, func() {
		l.mu.Lock()
		delete(l.viewers, id)
		l.mu.Unlock()
	}
}

func (l *LiveView) Viewers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.viewers)
}

// Run drains the live slot. Frames are only encoded while someone watches.
func (l *LiveView) Run(ctx context.Context) {
	for {
		frame, err := l.in.Take(ctx)
		if err != nil {
			return
		}
		if l.Viewers() == 0 {
			continue
		}
		image, err := l.encode(frame)
		if err != nil {
			log.Log.Error("websocket.LiveView.Run(): " + err.Error())
			continue
		}
		l.mu.Lock()
		for _, viewer := range l.viewers {
			viewer.Replace(image)
		}
		l.mu.Unlock()
	}
}
