package onvif

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/metrics"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/kerberos-io/onvif"
	"github.com/kerberos-io/onvif/media"
	"github.com/kerberos-io/onvif/ptz"
	xsdbase "github.com/kerberos-io/onvif/xsd"
	xsd "github.com/kerberos-io/onvif/xsd/onvif"
)

const DefaultPort = 80

// Controller is a control session with one camera. Every call after Setup
// is independent: a failure is logged and reported as a zero value, the
// session itself stays usable.
type Controller struct {
	port          int
	profileIndex  int
	device        *onvif.Device
	host          string
	profile       xsd.ReferenceToken
	configuration ptz.GetConfigurationsResponse
	capabilities  models.Capabilities
}

func NewController(port int) *Controller {
	if port <= 0 {
		port = DefaultPort
	}
	return &Controller{port: port}
}

// Setup opens the session described by the device's connection descriptor
// and reports what the camera supports.
func (c *Controller) Setup(device models.Device) (models.Capabilities, error) {
	creds, err := ParseDescriptor(device.DevicePath)
	if err != nil {
		log.Log.Error("onvif.Setup(): " + err.Error())
		return models.Capabilities{}, err
	}
	c.host = creds.Host
	xaddr := net.JoinHostPort(creds.Host, strconv.Itoa(c.port))

	dev, err := onvif.NewDevice(onvif.DeviceParams{
		Xaddr:    xaddr,
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		log.Log.Error("onvif.Setup(): " + err.Error())
		return models.Capabilities{}, &ConnectionError{Host: creds.Host, Err: err}
	}
	c.device = dev

	token, err := GetTokenFromProfile(dev, c.profileIndex)
	if err != nil {
		log.Log.Error("onvif.Setup(): " + err.Error())
		return models.Capabilities{}, &ConnectionError{Host: creds.Host, Err: err}
	}
	c.profile = xsd.ReferenceToken(token)

	if configuration, err := GetConfigurationsFromDevice(dev); err == nil {
		c.configuration = configuration
	} else {
		log.Log.Warning("onvif.Setup(): no PTZ configuration, using default spaces: " + err.Error())
	}

	c.capabilities = models.FullCapabilities()
	if body, ok := c.call("GetNodes", ptz.GetNodes{}); ok {
		if capabilities, err := decodeCapabilities(body); err == nil {
			c.capabilities = capabilities
		} else {
			log.Log.Warning("onvif.Setup(): could not read PTZ node, assuming full support: " + err.Error())
		}
	}

	log.Log.Info("onvif.Setup(): connected to " + xaddr + " with profile " + token)
	return c.capabilities, nil
}

// ContinuousMove starts a velocity move. The camera keeps moving until it
// is told to stop or receives a new velocity.
func (c *Controller) ContinuousMove(pan, tilt, zoom float64) bool {
	if !c.ready("ContinuousMove") {
		return false
	}
	request := ptz.ContinuousMove{ProfileToken: c.profile}
	if zoom != 0 && pan == 0 && tilt == 0 {
		request.Velocity = xsd.PTZSpeedZoom{
			Zoom: xsd.Vector1D{
				X:     zoom,
				Space: c.configuration.PTZConfiguration.DefaultContinuousZoomVelocitySpace,
			},
		}
	} else {
		request.Velocity = xsd.PTZSpeedPanTilt{
			PanTilt: xsd.Vector2D{
				X:     pan,
				Y:     tilt,
				Space: c.configuration.PTZConfiguration.DefaultContinuousPanTiltVelocitySpace,
			},
		}
	}
	_, ok := c.call("ContinuousMove", request)
	return ok
}

func (c *Controller) AbsoluteMove(position models.Position, speed float64) bool {
	if !c.ready("AbsoluteMove") {
		return false
	}
	_, ok := c.call("AbsoluteMove", ptz.AbsoluteMove{
		ProfileToken: c.profile,
		Position: xsd.PTZVector{
			PanTilt: xsd.Vector2D{
				X:     position.Pan,
				Y:     position.Tilt,
				Space: c.configuration.PTZConfiguration.DefaultAbsolutePantTiltPositionSpace,
			},
			Zoom: xsd.Vector1D{X: position.Zoom},
		},
		Speed: speedVector(speed),
	})
	return ok
}

func (c *Controller) RelativeMove(pan, tilt, zoom float64) bool {
	if !c.ready("RelativeMove") {
		return false
	}
	_, ok := c.call("RelativeMove", ptz.RelativeMove{
		ProfileToken: c.profile,
		Translation: xsd.PTZVector{
			PanTilt: xsd.Vector2D{X: pan, Y: tilt},
			Zoom:    xsd.Vector1D{X: zoom},
		},
	})
	return ok
}

func (c *Controller) Stop(panTilt, zoom bool) bool {
	if !c.ready("Stop") {
		return false
	}
	request := ptz.Stop{ProfileToken: c.profile}
	if panTilt {
		request.PanTilt = true
	}
	if zoom {
		request.Zoom = true
	}
	_, ok := c.call("Stop", request)
	return ok
}

// GetStatus returns the current position, or nil when it is unknown.
func (c *Controller) GetStatus() *models.Position {
	if !c.ready("GetStatus") {
		return nil
	}
	body, ok := c.call("GetStatus", ptz.GetStatus{ProfileToken: c.profile})
	if !ok {
		return nil
	}
	position, err := decodeStatus(body)
	if err != nil {
		log.Log.Error("onvif.GetStatus(): " + err.Error())
		return nil
	}
	return position
}

func (c *Controller) GetPresets() []models.CameraPreset {
	if !c.ready("GetPresets") {
		return nil
	}
	body, ok := c.call("GetPresets", ptz.GetPresets{ProfileToken: c.profile})
	if !ok {
		return nil
	}
	presets, err := decodePresets(body)
	if err != nil {
		log.Log.Error("onvif.GetPresets(): " + err.Error())
		return nil
	}
	return presets
}

// SavePreset stores the current position in the camera's memory and
// returns the camera's token, or "" on failure.
func (c *Controller) SavePreset(name string) string {
	if !c.ready("SavePreset") {
		return ""
	}
	body, ok := c.call("SetPreset", ptz.SetPreset{
		ProfileToken: c.profile,
		PresetName:   xsdbase.String(name),
	})
	if !ok {
		return ""
	}
	token, err := decodeSetPreset(body)
	if err != nil {
		log.Log.Error("onvif.SavePreset(): " + err.Error())
		return ""
	}
	return token
}

func (c *Controller) GotoPreset(token string, speed float64) bool {
	if !c.ready("GotoPreset") {
		return false
	}
	_, ok := c.call("GotoPreset", ptz.GotoPreset{
		ProfileToken: c.profile,
		PresetToken:  xsd.ReferenceToken(token),
		Speed:        speedVector(speed),
	})
	return ok
}

func (c *Controller) RemovePreset(token string) bool {
	if !c.ready("RemovePreset") {
		return false
	}
	_, ok := c.call("RemovePreset", ptz.RemovePreset{
		ProfileToken: c.profile,
		PresetToken:  xsd.ReferenceToken(token),
	})
	return ok
}

func (c *Controller) ready(operation string) bool {
	if c.device == nil || c.profile == "" {
		log.Log.Error("onvif." + operation + "(): no camera session")
		metrics.ControllerCalls.WithLabelValues(operation, "unbound").Inc()
		return false
	}
	return true
}

// call performs one SOAP request and returns the response body when the
// camera accepted it.
func (c *Controller) call(operation string, method interface{}) ([]byte, bool) {
	resp, err := c.device.CallMethod(method)
	if err != nil {
		log.Log.Error("onvif." + operation + "(): " + c.host + ": " + err.Error())
		metrics.ControllerCalls.WithLabelValues(operation, metrics.Result(false)).Inc()
		return nil, false
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Log.Error("onvif." + operation + "(): " + err.Error())
		metrics.ControllerCalls.WithLabelValues(operation, metrics.Result(false)).Inc()
		return nil, false
	}
	if resp.StatusCode != http.StatusOK {
		reason := decodeFault(body)
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		log.Log.Error("onvif." + operation + "(): " + c.host + ": " + strings.TrimSpace(reason))
		metrics.ControllerCalls.WithLabelValues(operation, metrics.Result(false)).Inc()
		return nil, false
	}
	log.Log.Debug("onvif." + operation + "(): " + c.host + ": ok")
	metrics.ControllerCalls.WithLabelValues(operation, metrics.Result(true)).Inc()
	return body, true
}

func speedVector(speed float64) xsd.PTZSpeed {
	return xsd.PTZSpeed{
		PanTilt: xsd.Vector2D{X: speed, Y: speed},
		Zoom:    xsd.Vector1D{X: speed},
	}
}

// GetTokenFromProfile returns the token of the media profile at
// profileIndex, falling back to the first profile.
func GetTokenFromProfile(device *onvif.Device, profileIndex int) (string, error) {
	resp, err := device.CallMethod(media.GetProfiles{})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		if reason := decodeFault(body); reason != "" {
			return "", errors.New("GetProfiles: " + reason)
		}
		return "", errors.New("GetProfiles: " + http.StatusText(resp.StatusCode))
	}
	return decodeProfileToken(body, profileIndex)
}

func GetConfigurationsFromDevice(device *onvif.Device) (ptz.GetConfigurationsResponse, error) {
	var configurations ptz.GetConfigurationsResponse
	resp, err := device.CallMethod(ptz.GetConfigurations{})
	if err != nil {
		return configurations, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return configurations, err
	}
	err = decodeNode(body, "GetConfigurationsResponse", &configurations)
	return configurations, err
}

// GetCapabilitiesFromDevice lists the services the camera advertises.
func GetCapabilitiesFromDevice(device *onvif.Device) []string {
	var capabilities []string
	for key := range device.GetServices() {
		if key == "" {
			continue
		}
		parts := strings.Split(key, "/")
		capabilities = append(capabilities, parts[len(parts)-1])
	}
	return capabilities
}
