package mqtt

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gofrs/uuid"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

const publishTimeout = 5 * time.Second

var ErrNotConnected = errors.New("mqtt: not connected")

// Controller is the part of the motion loop that remote actions drive.
type Controller interface {
	Move(direction models.Direction)
	Stop()
	SetSpeed(v int) int
	GotoPreset(token string) bool
	StartTour(delay time.Duration) bool
	StopTour() bool
}

// Bus publishes events and listens for inbound messages and remote PTZ
// actions.
type Bus struct {
	config     models.MQTTConfig
	client     mqtt.Client
	controller Controller
	messages   chan models.Message
}

func New(config models.MQTTConfig, controller Controller) *Bus {
	return &Bus{
		config:     config,
		controller: controller,
		messages:   make(chan models.Message, 16),
	}
}

// BrokerURI returns the broker address in the form paho expects.
func BrokerURI(config models.MQTTConfig) string {
	broker := config.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	if config.Port > 0 && strings.Count(broker, ":") < 2 {
		broker += ":" + strconv.Itoa(config.Port)
	}
	return broker
}

// ConfigureMQTT connects to the broker. The client keeps retrying in the
// background when the broker is not reachable yet.
func (b *Bus) ConfigureMQTT() {
	opts := mqtt.NewClientOptions()

	mqttURL := BrokerURI(b.config)
	opts.AddBroker(mqttURL)
	log.Log.Info("mqtt.ConfigureMQTT(): set broker uri " + mqttURL)

	if b.config.Username != "" || b.config.Password != "" {
		opts.SetUsername(b.config.Username)
		opts.SetPassword(b.config.Password)
		log.Log.Info("mqtt.ConfigureMQTT(): set username " + b.config.Username)
	}

	clientID := b.config.ClientID
	if clientID == "" {
		u, _ := uuid.NewV4()
		clientID = "ptz-agent-" + u.String()
	}
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetConnectRetry(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		log.Log.Info("mqtt.ConfigureMQTT(): " + clientID + " connected to " + mqttURL)
		b.subscribe(c)
	}
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Log.Warning("mqtt.ConfigureMQTT(): connection lost, reconnecting: " + err.Error())
	})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.WaitTimeout(3 * time.Second) {
		if token.Error() != nil {
			log.Log.Error("mqtt.ConfigureMQTT(): unable to establish mqtt broker connection, error was: " + token.Error().Error())
		}
	}
}

func (b *Bus) subscribe(c mqtt.Client) {
	if topic := b.config.SubscribeTopic; topic != "" {
		c.Subscribe(topic, 0, func(c mqtt.Client, msg mqtt.Message) {
			b.handleMessage(msg.Topic(), msg.Payload())
		})
	}
	if topic := b.config.ControlTopic; topic != "" {
		c.Subscribe(topic, 0, func(c mqtt.Client, msg mqtt.Message) {
			b.handleONVIF(msg.Payload())
		})
	}
}

// Publish sends payload as JSON and waits until the broker took it.
func (b *Bus) Publish(topic string, payload interface{}) error {
	if b.client == nil || !b.client.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := b.client.Publish(topic, 0, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("mqtt: publish to " + topic + " timed out")
	}
	return token.Error()
}

// Messages delivers decoded messages of the subscribe topic. Messages
// are dropped while nobody reads.
func (b *Bus) Messages() <-chan models.Message {
	return b.messages
}

func (b *Bus) handleMessage(topic string, payload []byte) {
	msg, err := models.DecodeMessage(topic, payload)
	if err != nil {
		log.Log.Error("mqtt.handleMessage(): could not decode message on " + topic + ": " + err.Error())
		return
	}
	log.Log.Debug("mqtt.handleMessage(): received message " + msg.Mid + " on " + topic)
	select {
	case b.messages <- msg:
	default:
		log.Log.Warning("mqtt.handleMessage(): message " + msg.Mid + " dropped, no reader")
	}
}

// handleONVIF applies a remote PTZ action to the motion loop.
func (b *Bus) handleONVIF(payload []byte) {
	var action models.OnvifAction
	if err := json.Unmarshal(payload, &action); err != nil {
		log.Log.Error("mqtt.handleONVIF(): " + err.Error())
		return
	}
	log.Log.Info("mqtt.handleONVIF(): received an action - " + action.Action)
	if b.controller == nil {
		return
	}

	switch action.Action {
	case "stop":
		b.controller.Stop()
	case "ptz":
		raw, _ := json.Marshal(action.Payload)
		var ptzAction models.OnvifActionPTZ
		if err := json.Unmarshal(raw, &ptzAction); err != nil {
			log.Log.Error("mqtt.handleONVIF(): invalid ptz payload: " + err.Error())
			return
		}
		if ptzAction.Speed != 0 {
			b.controller.SetSpeed(ptzAction.Speed)
		}
		if ptzAction.Preset != "" {
			if !b.controller.GotoPreset(ptzAction.Preset) {
				log.Log.Warning("mqtt.handleONVIF(): preset " + ptzAction.Preset + " could not be recalled")
			}
			return
		}
		if direction := ptzAction.Direction(); direction == models.DirectionIdle {
			b.controller.Stop()
		} else {
			b.controller.Move(direction)
		}
	case "tour":
		var tour models.TourRequest
		if action.Payload != nil {
			raw, _ := json.Marshal(action.Payload)
			if err := json.Unmarshal(raw, &tour); err != nil {
				log.Log.Error("mqtt.handleONVIF(): invalid tour payload: " + err.Error())
				return
			}
		}
		if !b.controller.StartTour(time.Duration(tour.DelayMs) * time.Millisecond) {
			log.Log.Warning("mqtt.handleONVIF(): tour could not be started")
		}
	case "stop-tour":
		b.controller.StopTour()
	default:
		log.Log.Warning("mqtt.handleONVIF(): unknown action " + action.Action)
	}
}

func (b *Bus) Disconnect() {
	if b.client != nil {
		b.client.Disconnect(1000)
	}
}
