package components

import (
	"context"
	"sync"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/api"
	"github.com/huyquang-bka/ptz-chp/src/buffer"
	"github.com/huyquang-bka/ptz-chp/src/capture"
	"github.com/huyquang-bka/ptz-chp/src/capture/opencv"
	"github.com/huyquang-bka/ptz-chp/src/cloud"
	"github.com/huyquang-bka/ptz-chp/src/computervision"
	"github.com/huyquang-bka/ptz-chp/src/fetch"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/huyquang-bka/ptz-chp/src/onvif"
	"github.com/huyquang-bka/ptz-chp/src/presets"
	"github.com/huyquang-bka/ptz-chp/src/ptz"
	httpRouter "github.com/huyquang-bka/ptz-chp/src/routers/http"
	mqttRouter "github.com/huyquang-bka/ptz-chp/src/routers/mqtt"
	"github.com/huyquang-bka/ptz-chp/src/routers/websocket"
)

// Agent owns the configuration, the clients and the long running loops of
// the PTZ agent. Nothing it holds is global.
type Agent struct {
	Config models.Config

	Client    *api.Client
	Presets   *presets.Store
	Loop      *ptz.Loop
	Directory *Directory
	Bus       *mqttRouter.Bus
	Images    cloud.Uploader
	Snapshots cloud.Uploader

	// Capture pipeline, nil when capture is disabled.
	Producer *capture.Producer
	Live     *websocket.LiveView
	// Event path, nil when motion detection is disabled.
	Detector *computervision.Detector
	Events   *capture.EventConsumer

	Hub *websocket.Hub

	liveFrames   *buffer.Slot[models.Frame]
	motionFrames *buffer.Slot[models.Frame]
	eventFrames  *buffer.Slot[models.Frame]
}

// NewAgent wires every component from the configuration. It does not
// start anything.
func NewAgent(config models.Config) (*Agent, error) {
	a := &Agent{Config: config}

	a.Client = api.New(api.ConfigFrom(config.API), api.NewFileSessionStore(config.SessionFile))
	a.Presets = presets.NewStore(config.Presets.File)

	onvifPort := config.PTZ.OnvifPort
	a.Loop = ptz.NewLoop(func() ptz.Controller {
		return onvif.NewController(onvifPort)
	}, a.Presets, ptz.Options{
		TickInterval: config.PTZ.TickInterval(),
		BaseStep:     config.PTZ.BaseStep,
		RecallSpeed:  config.PTZ.RecallSpeed,
		DefaultSpeed: config.PTZ.DefaultSpeed,
	})

	a.Bus = mqttRouter.New(config.MQTT, a.Loop)

	images, err := cloud.New(config.Storage, a.Client)
	if err != nil {
		return nil, err
	}
	a.Images = images
	a.Snapshots = cloud.NewDiskUploader(config.Storage.ImageDirectory)

	selectors := []DeviceSelector{a.Loop}
	if config.Capture.Enabled != "false" {
		a.liveFrames = buffer.NewSlot[models.Frame]()
		a.Producer = capture.NewProducer(opencv.Open)
		a.Producer.RetryInterval = config.Capture.RetryInterval()
		a.Producer.FrameInterval = config.Capture.FrameInterval()
		a.Producer.AddOutput("live", a.liveFrames)
		a.Live = websocket.NewLiveView(a.liveFrames, opencv.JPEGEncoder(config.Capture.JPEGQuality))
		selectors = append(selectors, a.Producer)

		if config.Motion.Enabled != "false" {
			a.motionFrames = buffer.NewSlot[models.Frame]()
			a.eventFrames = buffer.NewSlot[models.Frame]()
			a.Producer.AddOutput("motion", a.motionFrames)
			a.Detector = computervision.NewDetector(config.Motion, opencv.Gray)
			a.Events = capture.NewEventConsumer(a.eventFrames, opencv.JPEGEncoder(config.Capture.JPEGQuality), a.Images, a.Bus, config.MQTT.Topic)
			selectors = append(selectors, a.Detector, a.Events)
		}
	}

	a.Directory = NewDirectory(fetch.DeviceWorker(a.Client, config.PTZ.FunctionID, config.API.FetchTimeout()), selectors...)
	a.Hub = websocket.NewHub(a.Live, a.Loop, a.Directory)
	return a, nil
}

// Handlers exposes the agent to the REST API.
func (a *Agent) Handlers() *httpRouter.Handlers {
	return &httpRouter.Handlers{
		Presets: a.Presets,
		PTZ:     a.Loop,
		Devices: a.Directory,
		Images:  a.Snapshots,
		Hub:     a.Hub,
	}
}

// Run starts every loop and the REST API and blocks until ctx is done or
// the API cannot be served.
func (a *Agent) Run(ctx context.Context) error {
	log.Log.Info("components.Run(): starting " + a.Config.Name)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.Config.MQTT.Broker != "" {
		a.Bus.ConfigureMQTT()
		defer a.Bus.Disconnect()
	} else {
		log.Log.Warning("components.Run(): no MQTT broker configured, events will not be published")
	}

	var wg sync.WaitGroup
	start := func(run func(ctx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	start(a.Loop.Run)
	start(a.consumeMessages)
	if a.Producer != nil {
		start(a.Producer.Run)
		start(a.Live.Run)
	}
	if a.Detector != nil {
		start(func(ctx context.Context) {
			a.Detector.Run(ctx, a.motionFrames, a.eventFrames)
		})
		start(a.Events.Run)
	}
	start(func(ctx context.Context) {
		a.Directory.ReloadDevices(ctx)
	})

	err := httpRouter.StartServer(ctx, a.Config.Server, a.Handlers())
	if err != nil {
		log.Log.Error("components.Run(): " + err.Error())
	}
	cancel()
	wg.Wait()
	log.Log.Info("components.Run(): stopped")
	return err
}

// consumeMessages logs the inbound bus messages. Remote PTZ actions are
// already applied by the bus itself.
func (a *Agent) consumeMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-a.Bus.Messages():
			log.Log.WithFields(map[string]interface{}{
				"mid":         message.Mid,
				"topic":       message.Topic,
				"received_at": time.Unix(message.ReceivedAt, 0).Format(time.RFC3339),
			}, "components.consumeMessages(): message received")
		}
	}
}
