package models

import "time"

// Config is the highlevel struct which contains all the configuration of
// the PTZ agent. It is read from data/config/config.json and can be
// overridden with PTZ_* environment variables.
type Config struct {
	Name        string        `json:"name"`
	Timezone    string        `json:"timezone,omitempty"`
	LogLevel    string        `json:"log_level,omitempty"`
	LogOutput   string        `json:"log_output,omitempty"`
	LogDir      string        `json:"log_directory,omitempty"`
	SessionFile string        `json:"session_file,omitempty"`
	API         APIConfig     `json:"api"`
	MQTT        MQTTConfig    `json:"mqtt"`
	PTZ         PTZConfig     `json:"ptz"`
	Capture     CaptureConfig `json:"capture"`
	Motion      MotionConfig  `json:"motion"`
	Presets     PresetsConfig `json:"presets"`
	Storage     StorageConfig `json:"storage"`
	Server      ServerConfig  `json:"server"`
}

// APIConfig describes the backend. Every endpoint is composed as
// BaseURL + AdditionalRoute + route.
type APIConfig struct {
	BaseURL         string `json:"base_url"`
	AdditionalRoute string `json:"additional_route"`
	LoginRoute      string `json:"login_route"`
	RefreshRoute    string `json:"refresh_route"`
	DeviceRoute     string `json:"device_route"`
	UploadRoute     string `json:"upload_route"`
	ClientID        string `json:"client_id"`
	ClientSecret    string `json:"client_secret"`
	TimeoutMs       int    `json:"timeout_ms"`
	FetchTimeoutMs  int    `json:"fetch_timeout_ms"`
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c APIConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

type MQTTConfig struct {
	Broker         string `json:"broker"`
	Port           int    `json:"port"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	Topic          string `json:"topic"`
	SubscribeTopic string `json:"subscribe_topic,omitempty"`
	ControlTopic   string `json:"control_topic,omitempty"`
}

type PTZConfig struct {
	FunctionID     int     `json:"function_id"`
	OnvifPort      int     `json:"onvif_port"`
	TickIntervalMs int     `json:"tick_interval_ms"`
	BaseStep       float64 `json:"base_step"`
	DefaultSpeed   int     `json:"default_speed"`
	RecallSpeed    float64 `json:"recall_speed"`
}

func (c PTZConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

type CaptureConfig struct {
	Enabled         string `json:"enabled"`
	RetryIntervalMs int    `json:"retry_interval_ms"`
	FrameIntervalMs int    `json:"frame_interval_ms"`
	JPEGQuality     int    `json:"jpeg_quality"`
}

func (c CaptureConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMs) * time.Millisecond
}

func (c CaptureConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// MotionConfig tunes the frame differencing that decides which frames are
// turned into events.
type MotionConfig struct {
	Enabled          string    `json:"enabled"`
	PixelThreshold   int       `json:"pixel_threshold"`
	ChangesThreshold int       `json:"changes_threshold"`
	SampleStep       int       `json:"sample_step"`
	CooldownMs       int       `json:"cooldown_ms"`
	Region           []Polygon `json:"region,omitempty"`
}

func (c MotionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// Polygon is a region of interest in pixel coordinates.
type Polygon struct {
	ID     string  `json:"id"`
	Coords []Coord `json:"coordinates"`
}

type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresetsConfig struct {
	File string `json:"file"`
}

// StorageConfig selects where event snapshots are uploaded: "api" posts
// them to the backend, "s3" writes them to a bucket and "local" keeps them
// in ImageDirectory.
type StorageConfig struct {
	Cloud          string   `json:"cloud"`
	ImageDirectory string   `json:"image_directory"`
	S3             S3Config `json:"s3,omitempty"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Secure    string `json:"secure"`
	PublicURL string `json:"public_url,omitempty"`
}

type ServerConfig struct {
	Port         string `json:"port"`
	AllowOrigins string `json:"allow_origins,omitempty"`
}
