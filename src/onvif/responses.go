package onvif

import (
	"bytes"
	"encoding/xml"
	"errors"

	"github.com/huyquang-bka/ptz-chp/src/models"
)

// The responses below are decoded by local name only, so the namespace
// prefixes a camera picks do not matter.

type xmlVector2D struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
}

type xmlVector1D struct {
	X float64 `xml:"x,attr"`
}

type xmlPTZVector struct {
	PanTilt *xmlVector2D `xml:"PanTilt"`
	Zoom    *xmlVector1D `xml:"Zoom"`
}

func (v *xmlPTZVector) position() *models.Position {
	if v == nil || (v.PanTilt == nil && v.Zoom == nil) {
		return nil
	}
	p := &models.Position{}
	if v.PanTilt != nil {
		p.Pan = v.PanTilt.X
		p.Tilt = v.PanTilt.Y
	}
	if v.Zoom != nil {
		p.Zoom = v.Zoom.X
	}
	return p
}

type getStatusResponse struct {
	Status struct {
		Position *xmlPTZVector `xml:"Position"`
	} `xml:"PTZStatus"`
}

type getPresetsResponse struct {
	Presets []struct {
		Token    string        `xml:"token,attr"`
		Name     string        `xml:"Name"`
		Position *xmlPTZVector `xml:"PTZPosition"`
	} `xml:"Preset"`
}

type setPresetResponse struct {
	PresetToken string `xml:"PresetToken"`
}

type getProfilesResponse struct {
	Profiles []struct {
		Token string `xml:"token,attr"`
		Name  string `xml:"Name"`
	} `xml:"Profiles"`
}

type spaceList []struct {
	URI string `xml:"URI"`
}

type getNodesResponse struct {
	Nodes []struct {
		Token  string `xml:"token,attr"`
		Spaces struct {
			AbsolutePanTilt   spaceList `xml:"AbsolutePanTiltPositionSpace"`
			AbsoluteZoom      spaceList `xml:"AbsoluteZoomPositionSpace"`
			RelativePanTilt   spaceList `xml:"RelativePanTiltTranslationSpace"`
			RelativeZoom      spaceList `xml:"RelativeZoomTranslationSpace"`
			ContinuousPanTilt spaceList `xml:"ContinuousPanTiltVelocitySpace"`
			ContinuousZoom    spaceList `xml:"ContinuousZoomVelocitySpace"`
		} `xml:"SupportedPTZSpaces"`
		MaximumNumberOfPresets int `xml:"MaximumNumberOfPresets"`
	} `xml:"PTZNode"`
}

type soapFault struct {
	Reason string `xml:"Reason>Text"`
	Code   string `xml:"Code>Value"`
}

// getXMLNode positions a decoder on the first element with the given local
// name.
func getXMLNode(xmlBody []byte, nodeName string) (*xml.Decoder, *xml.StartElement, error) {
	decodedXML := xml.NewDecoder(bytes.NewReader(xmlBody))
	for {
		token, err := decodedXML.Token()
		if err != nil {
			break
		}
		switch et := token.(type) {
		case xml.StartElement:
			if et.Name.Local == nodeName {
				return decodedXML, &et, nil
			}
		}
	}
	return nil, nil, errors.New("node " + nodeName + " not found in response")
}

func decodeNode(body []byte, nodeName string, v interface{}) error {
	decoder, element, err := getXMLNode(body, nodeName)
	if err != nil {
		return err
	}
	return decoder.DecodeElement(v, element)
}

func decodeStatus(body []byte) (*models.Position, error) {
	var resp getStatusResponse
	if err := decodeNode(body, "GetStatusResponse", &resp); err != nil {
		return nil, err
	}
	position := resp.Status.Position.position()
	if position == nil {
		return nil, errors.New("status has no position")
	}
	return position, nil
}

func decodePresets(body []byte) ([]models.CameraPreset, error) {
	var resp getPresetsResponse
	if err := decodeNode(body, "GetPresetsResponse", &resp); err != nil {
		return nil, err
	}
	presets := make([]models.CameraPreset, 0, len(resp.Presets))
	for _, p := range resp.Presets {
		presets = append(presets, models.CameraPreset{
			Token:    p.Token,
			Name:     p.Name,
			Position: p.Position.position(),
		})
	}
	return presets, nil
}

func decodeSetPreset(body []byte) (string, error) {
	var resp setPresetResponse
	if err := decodeNode(body, "SetPresetResponse", &resp); err != nil {
		return "", err
	}
	if resp.PresetToken == "" {
		return "", errors.New("camera returned no preset token")
	}
	return resp.PresetToken, nil
}

func decodeProfileToken(body []byte, profileIndex int) (string, error) {
	var resp getProfilesResponse
	if err := decodeNode(body, "GetProfilesResponse", &resp); err != nil {
		return "", err
	}
	if len(resp.Profiles) == 0 {
		return "", errors.New("camera has no media profiles")
	}
	if profileIndex < 0 || profileIndex >= len(resp.Profiles) {
		profileIndex = 0
	}
	return resp.Profiles[profileIndex].Token, nil
}

// decodeCapabilities derives the capability flags from the first PTZ node.
func decodeCapabilities(body []byte) (models.Capabilities, error) {
	var resp getNodesResponse
	if err := decodeNode(body, "GetNodesResponse", &resp); err != nil {
		return models.Capabilities{}, err
	}
	if len(resp.Nodes) == 0 {
		return models.Capabilities{}, errors.New("camera has no PTZ node")
	}
	node := resp.Nodes[0]
	continuous := len(node.Spaces.ContinuousPanTilt) > 0 || len(node.Spaces.ContinuousZoom) > 0
	return models.Capabilities{
		ContinuousMove: continuous,
		AbsoluteMove:   len(node.Spaces.AbsolutePanTilt) > 0,
		RelativeMove:   len(node.Spaces.RelativePanTilt) > 0 || len(node.Spaces.RelativeZoom) > 0,
		Stop:           continuous,
		Status:         true,
		Presets:        node.MaximumNumberOfPresets > 0,
	}, nil
}

func decodeFault(body []byte) string {
	var fault soapFault
	if err := decodeNode(body, "Fault", &fault); err != nil {
		return ""
	}
	if fault.Reason != "" {
		return fault.Reason
	}
	return fault.Code
}
