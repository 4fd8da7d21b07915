package ptz

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

const (
	DefaultTickInterval = 10 * time.Millisecond
	DefaultBaseStep     = 0.5
	DefaultRecallSpeed  = 0.5
	DefaultTourDelay    = 2 * time.Second
)

type Options struct {
	TickInterval time.Duration
	BaseStep     float64
	RecallSpeed  float64
	DefaultSpeed int
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.BaseStep <= 0 {
		o.BaseStep = DefaultBaseStep
	}
	if o.RecallSpeed <= 0 {
		o.RecallSpeed = DefaultRecallSpeed
	}
	if o.DefaultSpeed == 0 {
		o.DefaultSpeed = models.DefaultSpeed
	}
	o.DefaultSpeed = models.ClampSpeed(o.DefaultSpeed)
	return o
}

// Status is a snapshot of the loop for display.
type Status struct {
	Bound        bool                `json:"bound"`
	Device       *models.Device      `json:"device,omitempty"`
	Command      models.Direction    `json:"command"`
	Speed        int                 `json:"speed"`
	Capabilities models.Capabilities `json:"capabilities"`
	Pending      bool                `json:"pending"`
	Touring      bool                `json:"touring"`
}

// Loop drives one camera. Callers only record intent (device, command,
// speed); a ticker turns it into controller calls. Every controller call,
// from the tick or from a preset operation, happens under mu, so calls on
// a camera never overlap.
type Loop struct {
	newController ControllerFactory
	store         PresetStore
	options       Options

	mu         sync.Mutex
	controller Controller
	device     *models.Device

	// state holds what callers write and what readers may see without
	// waiting for a slow camera.
	state        sync.Mutex
	pending      *models.Device
	rebinding    *models.Device
	command      models.Direction
	speed        int
	bound        *models.Device
	capabilities models.Capabilities
	tour         *tour

	subsMu  sync.Mutex
	subs    map[int]chan []models.Preset
	nextSub int
}

func NewLoop(factory ControllerFactory, store PresetStore, options Options) *Loop {
	options = options.withDefaults()
	return &Loop{
		newController: factory,
		store:         store,
		options:       options,
		command:       models.DirectionIdle,
		speed:         options.DefaultSpeed,
		subs:          map[int]chan []models.Preset{},
	}
}

// SelectDevice asks for a rebind on the next tick. Selecting the device
// the loop is bound to, or is being bound to, cancels a pending rebind.
func (l *Loop) SelectDevice(device models.Device) {
	l.state.Lock()
	defer l.state.Unlock()
	target := l.bound
	if l.rebinding != nil {
		target = l.rebinding
	}
	if target != nil && target.Same(device) {
		l.pending = nil
		return
	}
	d := device
	l.pending = &d
	log.Log.Info(fmt.Sprintf("ptz.SelectDevice(): rebind to device %d (%s) requested", device.ID, device.Name))
}

// Move sets the motion command. The latest command wins.
func (l *Loop) Move(direction models.Direction) {
	l.state.Lock()
	l.command = direction
	l.state.Unlock()
}

// Stop clears the command, ends a running tour and stops the camera right
// away. The command is cleared before waiting for the camera so no later
// tick moves it again.
func (l *Loop) Stop() {
	l.state.Lock()
	l.command = models.DirectionIdle
	l.state.Unlock()
	l.StopTour()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.controller != nil {
		l.controller.Stop(true, true)
	}
}

// SetSpeed clamps v into 1..10. It takes effect on the next tick.
func (l *Loop) SetSpeed(v int) int {
	v = models.ClampSpeed(v)
	l.state.Lock()
	l.speed = v
	l.state.Unlock()
	return v
}

func (l *Loop) Status() Status {
	l.state.Lock()
	defer l.state.Unlock()
	s := Status{
		Bound:        l.bound != nil,
		Command:      l.command,
		Speed:        l.speed,
		Capabilities: l.capabilities,
		Pending:      l.pending != nil,
		Touring:      l.tour != nil,
	}
	if l.bound != nil {
		d := *l.bound
		s.Device = &d
	}
	return s
}

// Run ticks until ctx is done. Ticks never overlap; a slow camera makes
// the ticker drop ticks instead of queueing them.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.options.TickInterval)
	defer ticker.Stop()
	log.Log.Info("ptz.Run(): motion loop started")
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			log.Log.Info("ptz.Run(): motion loop stopped")
			return
		case <-ticker.C:
			l.safeTick()
		}
	}
}

func (l *Loop) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			log.Log.Error(fmt.Sprintf("ptz.tick(): recovered from panic: %v\n%s", r, debug.Stack()))
		}
	}()
	l.tick()
}

func (l *Loop) tick() {
	l.state.Lock()
	pending := l.pending
	l.pending = nil
	l.rebinding = pending
	l.state.Unlock()
	if pending != nil {
		l.StopTour()
		l.rebind(*pending)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.controller == nil {
		return
	}
	l.state.Lock()
	command, speed := l.command, l.speed
	l.state.Unlock()
	if command == models.DirectionIdle {
		return
	}
	magnitude := l.options.BaseStep * models.SpeedMultiplier(speed)
	pan, tilt, zoom := command.Vector()
	l.controller.ContinuousMove(pan*magnitude, tilt*magnitude, zoom*magnitude)
}

// rebind sets up a fresh controller for device and swaps it in. On
// failure the loop is left unbound until the next SelectDevice.
func (l *Loop) rebind(device models.Device) {
	controller := l.newController()
	capabilities, err := controller.Setup(device)

	l.mu.Lock()
	l.state.Lock()
	l.rebinding = nil
	if err != nil {
		l.controller = nil
		l.device = nil
		l.bound = nil
		l.capabilities = models.Capabilities{}
	} else {
		d, b := device, device
		l.controller = controller
		l.device = &d
		l.bound = &b
		l.capabilities = capabilities
	}
	l.state.Unlock()
	l.mu.Unlock()

	if err != nil {
		log.Log.Error(fmt.Sprintf("ptz.rebind(): device %d: %s", device.ID, err.Error()))
		metrics.BoundDevice.Set(0)
		return
	}
	log.Log.Info(fmt.Sprintf("ptz.rebind(): bound to device %d (%s)", device.ID, device.Name))
	metrics.BoundDevice.Set(float64(device.ID))
	l.publish(l.store.Get(device.CameraKey()))
}

func (l *Loop) shutdown() {
	l.state.Lock()
	moving := l.command != models.DirectionIdle
	l.state.Unlock()
	if moving {
		l.Stop()
	}
}

// SavePreset stores the camera's current position under name and mirrors
// it into the camera's memory when the camera has presets.
func (l *Loop) SavePreset(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.controller == nil {
		return "", false
	}
	capabilities := l.currentCapabilities()

	var position *models.Position
	if capabilities.Status {
		position = l.controller.GetStatus()
	}
	key := l.device.CameraKey()
	token, err := l.store.Save(key, name, position)
	if err != nil {
		log.Log.Error("ptz.SavePreset(): " + err.Error())
		return "", false
	}
	if capabilities.Presets {
		if l.controller.SavePreset(name) == "" {
			log.Log.Warning("ptz.SavePreset(): preset " + name + " saved locally but not on the camera")
		}
	}
	l.publish(l.store.Get(key))
	return token, true
}

// GotoPreset moves to a stored preset: an absolute move to its position
// when possible, otherwise the camera's own preset recall.
func (l *Loop) GotoPreset(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.controller == nil {
		return false
	}
	preset, ok := l.store.Find(l.device.CameraKey(), token)
	if !ok {
		return false
	}
	capabilities := l.currentCapabilities()
	switch {
	case preset.Position != nil && capabilities.AbsoluteMove:
		return l.controller.AbsoluteMove(*preset.Position, l.options.RecallSpeed)
	case capabilities.Presets:
		return l.controller.GotoPreset(l.cameraToken(preset), l.options.RecallSpeed)
	}
	log.Log.Warning("ptz.GotoPreset(): camera supports neither absolute moves nor presets")
	return false
}

func (l *Loop) UpdatePresetName(token, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.device == nil {
		return false
	}
	key := l.device.CameraKey()
	ok, err := l.store.Update(key, token, &name, nil)
	if err != nil {
		log.Log.Error("ptz.UpdatePresetName(): " + err.Error())
		return false
	}
	if ok {
		l.publish(l.store.Get(key))
	}
	return ok
}

// UpdatePresetPosition overwrites the stored position of a preset with the
// camera's current position.
func (l *Loop) UpdatePresetPosition(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.controller == nil || !l.currentCapabilities().Status {
		return false
	}
	position := l.controller.GetStatus()
	if position == nil {
		return false
	}
	key := l.device.CameraKey()
	ok, err := l.store.Update(key, token, nil, position)
	if err != nil {
		log.Log.Error("ptz.UpdatePresetPosition(): " + err.Error())
		return false
	}
	if ok {
		l.publish(l.store.Get(key))
	}
	return ok
}

// DeletePreset removes a stored preset and, best effort, the camera preset
// with the same name.
func (l *Loop) DeletePreset(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.device == nil {
		return false
	}
	key := l.device.CameraKey()
	preset, found := l.store.Find(key, token)
	ok, err := l.store.Delete(key, token)
	if err != nil {
		log.Log.Error("ptz.DeletePreset(): " + err.Error())
		return false
	}
	if !ok {
		return false
	}
	if found && l.controller != nil && l.currentCapabilities().Presets {
		if cameraToken, exists := l.cameraPreset(preset.Name); exists {
			if !l.controller.RemovePreset(cameraToken) {
				log.Log.Warning("ptz.DeletePreset(): camera preset " + preset.Name + " was not removed")
			}
		}
	}
	l.publish(l.store.Get(key))
	return true
}

// FetchPresets returns the presets of the bound device and pushes them to
// subscribers.
func (l *Loop) FetchPresets() []models.Preset {
	l.state.Lock()
	bound := l.bound
	l.state.Unlock()
	if bound == nil {
		return nil
	}
	list := l.store.Get(bound.CameraKey())
	l.publish(list)
	return list
}

// SubscribePresets returns a channel that always holds the latest preset
// list. Slow readers miss intermediate lists, never the last one.
func (l *Loop) SubscribePresets() (<-chan []models.Preset, func()) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan []models.Preset, 1)
	l.subs[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.subsMu.Lock()
			defer l.subsMu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (l *Loop) publish(list []models.Preset) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- list:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- list:
		default:
		}
	}
}

func (l *Loop) currentCapabilities() models.Capabilities {
	l.state.Lock()
	defer l.state.Unlock()
	return l.capabilities
}

// cameraToken maps a stored preset to the camera's own preset token by
// name, falling back to the stored token.
func (l *Loop) cameraToken(preset models.Preset) string {
	if token, ok := l.cameraPreset(preset.Name); ok {
		return token
	}
	return preset.Token
}

func (l *Loop) cameraPreset(name string) (string, bool) {
	for _, p := range l.controller.GetPresets() {
		if p.Name == name {
			return p.Token, true
		}
	}
	return "", false
}

type tour struct {
	cancel context.CancelFunc
}

// StartTour recalls every stored preset of the bound camera once, in
// order, waiting delay after each. It reports false when unbound, without
// presets or when a tour is already running.
func (l *Loop) StartTour(delay time.Duration) bool {
	if delay <= 0 {
		delay = DefaultTourDelay
	}
	l.state.Lock()
	bound, running := l.bound, l.tour != nil
	l.state.Unlock()
	if bound == nil || running {
		return false
	}
	list := l.store.Get(bound.CameraKey())
	if len(list) == 0 {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &tour{cancel: cancel}
	l.state.Lock()
	if l.tour != nil {
		l.state.Unlock()
		cancel()
		return false
	}
	l.tour = t
	l.state.Unlock()

	log.Log.Info(fmt.Sprintf("ptz.StartTour(): touring %d presets of device %d", len(list), bound.ID))
	go l.runTour(ctx, t, list, delay)
	return true
}

// StopTour ends a running tour and reports whether there was one.
func (l *Loop) StopTour() bool {
	l.state.Lock()
	t := l.tour
	l.tour = nil
	l.state.Unlock()
	if t == nil {
		return false
	}
	t.cancel()
	return true
}

func (l *Loop) runTour(ctx context.Context, t *tour, list []models.Preset, delay time.Duration) {
	defer func() {
		l.state.Lock()
		if l.tour == t {
			l.tour = nil
		}
		l.state.Unlock()
		t.cancel()
	}()
	for i, preset := range list {
		if ctx.Err() != nil {
			break
		}
		log.Log.Info(fmt.Sprintf("ptz.runTour(): preset %d/%d: %s", i+1, len(list), preset.Name))
		if !l.GotoPreset(preset.Token) {
			log.Log.Warning("ptz.runTour(): preset " + preset.Name + " could not be recalled")
		}
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
	log.Log.Info("ptz.runTour(): tour finished")
}
