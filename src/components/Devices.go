package components

import (
	"context"
	"strconv"
	"sync"

	"github.com/huyquang-bka/ptz-chp/src/fetch"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// DeviceSelector is anything that follows the selected device, such as the
// motion loop or the frame producer.
type DeviceSelector interface {
	SelectDevice(device models.Device)
}

// Directory caches the PTZ devices of the backend and fans a selection
// out to every selector.
type Directory struct {
	worker    *fetch.Worker[models.Device]
	selectors []DeviceSelector

	mu       sync.RWMutex
	devices  []models.Device
	selected *models.Device

	subsMu  sync.Mutex
	subs    map[int]chan []models.Device
	nextSub int
}

func NewDirectory(worker *fetch.Worker[models.Device], selectors ...DeviceSelector) *Directory {
	return &Directory{
		worker:    worker,
		selectors: selectors,
		subs:      map[int]chan []models.Device{},
	}
}

func (d *Directory) Devices() []models.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Device(nil), d.devices...)
}

func (d *Directory) Selected() (models.Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.selected == nil {
		return models.Device{}, false
	}
	return *d.selected, true
}

// ReloadDevices runs one bounded fetch. The cache is only replaced on
// success; a timeout or failure keeps the previous list.
func (d *Directory) ReloadDevices(ctx context.Context) fetch.Outcome[models.Device] {
	outcome := d.worker.Run(ctx)
	if outcome.Kind != fetch.Success {
		log.Log.Warning("components.ReloadDevices(): " + string(outcome.Kind) + ": " + outcome.Message)
		return outcome
	}

	d.mu.Lock()
	d.devices = append([]models.Device(nil), outcome.Items...)
	d.mu.Unlock()
	log.Log.Info("components.ReloadDevices(): loaded " + strconv.Itoa(len(outcome.Items)) + " PTZ devices")
	d.publish(outcome.Items)
	return outcome
}

// SelectDevice looks the device up in the cache and hands it to every
// selector.
func (d *Directory) SelectDevice(id int) (models.Device, bool) {
	d.mu.Lock()
	var device *models.Device
	for i := range d.devices {
		if d.devices[i].ID == id {
			found := d.devices[i]
			device = &found
			break
		}
	}
	if device == nil {
		d.mu.Unlock()
		return models.Device{}, false
	}
	d.selected = device
	d.mu.Unlock()

	log.Log.Info("components.SelectDevice(): selected " + device.Name + " (" + strconv.Itoa(device.ID) + ")")
	for _, s := range d.selectors {
		s.SelectDevice(*device)
	}
	return *device, true
}

// SubscribeDevices delivers every successfully loaded device list. Slow
// subscribers only see the latest one.
func (d *Directory) SubscribeDevices() (<-chan []models.Device, func()) {
	ch := make(chan []models.Device, 1)
	d.subsMu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch
	d.subsMu.Unlock()

	return ch, func() {
		d.subsMu.Lock()
		delete(d.subs, id)
		d.subsMu.Unlock()
	}
}

func (d *Directory) publish(list []models.Device) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for _, ch := range d.subs {
		select {
		case <-ch:
		default:
		}
		ch <- append([]models.Device(nil), list...)
	}
}
