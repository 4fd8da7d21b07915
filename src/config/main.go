package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/InVisionApp/conjungo"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// Defaults are the built-in settings. Values from config.json and the
// environment are merged on top of them.
func Defaults() models.Config {
	return models.Config{
		Name:        "ptz-agent",
		Timezone:    "Asia/Ho_Chi_Minh",
		LogLevel:    "info",
		LogOutput:   "logrus",
		SessionFile: "data/config/session.json",
		API: models.APIConfig{
			AdditionalRoute: "/Service/api",
			LoginRoute:      "/token/auth",
			RefreshRoute:    "/token/auth",
			DeviceRoute:     "/device?page=1&itemsPerPage=999",
			UploadRoute:     "/save-image",
			ClientID:        "EPS",
			TimeoutMs:       10000,
			FetchTimeoutMs:  5000,
		},
		MQTT: models.MQTTConfig{
			Port:  1883,
			Topic: "ptz/events",
		},
		PTZ: models.PTZConfig{
			FunctionID:     2,
			OnvifPort:      80,
			TickIntervalMs: 10,
			BaseStep:       0.5,
			DefaultSpeed:   models.DefaultSpeed,
			RecallSpeed:    0.5,
		},
		Capture: models.CaptureConfig{
			Enabled:         "true",
			RetryIntervalMs: 1000,
			FrameIntervalMs: 10,
			JPEGQuality:     90,
		},
		Motion: models.MotionConfig{
			Enabled:          "true",
			PixelThreshold:   25,
			ChangesThreshold: 150,
			SampleStep:       4,
			CooldownMs:       5000,
		},
		Presets: models.PresetsConfig{
			File: "data/presets.json",
		},
		Storage: models.StorageConfig{
			Cloud:          "api",
			ImageDirectory: "data/images",
		},
		Server: models.ServerConfig{
			Port: "8000",
		},
	}
}

// OpenConfig reads <configDirectory>/data/config/config.json, merges it over
// the defaults and applies PTZ_* environment variables. A missing file is
// not fatal: the defaults and environment are used instead.
func OpenConfig(configDirectory string) (models.Config, error) {
	config := Defaults()

	var fileConfig models.Config
	path := filepath.Join(configDirectory, "data", "config", "config.json")
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Log.Warning("config.OpenConfig(): " + path + " not found, using defaults")
	case err != nil:
		return config, err
	default:
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return config, errors.New("config.OpenConfig(): " + path + " is not valid: " + err.Error())
		}
		if err := Merge(&config, fileConfig); err != nil {
			return config, err
		}
		log.Log.Info("config.OpenConfig(): loaded " + path)
	}

	OverrideWithEnvironmentVariables(&config)
	resolvePaths(configDirectory, &config)
	return config, nil
}

// Merge copies every non-empty value of source into target.
func Merge(target *models.Config, source models.Config) error {
	opts := conjungo.NewOptions()
	opts.SetTypeMergeFunc(
		reflect.TypeOf(""),
		func(t, s reflect.Value, o *conjungo.Options) (reflect.Value, error) {
			targetStr, _ := t.Interface().(string)
			sourceStr, _ := s.Interface().(string)
			finalStr := targetStr
			if sourceStr != "" {
				finalStr = sourceStr
			}
			return reflect.ValueOf(finalStr), nil
		},
	)
	opts.SetTypeMergeFunc(
		reflect.TypeOf(0),
		func(t, s reflect.Value, o *conjungo.Options) (reflect.Value, error) {
			if s.Int() != 0 {
				return s, nil
			}
			return t, nil
		},
	)
	opts.SetTypeMergeFunc(
		reflect.TypeOf(0.0),
		func(t, s reflect.Value, o *conjungo.Options) (reflect.Value, error) {
			if s.Float() != 0 {
				return s, nil
			}
			return t, nil
		},
	)
	return conjungo.Merge(target, source, opts)
}

// OverrideWithEnvironmentVariables applies PTZ_* variables on top of the
// configuration.
func OverrideWithEnvironmentVariables(config *models.Config) {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "PTZ_") {
			continue
		}
		key := strings.SplitN(env, "=", 2)[0]
		value := os.Getenv(key)
		switch key {

		/* General configuration */
		case "PTZ_NAME":
			config.Name = value
		case "PTZ_TIMEZONE":
			config.Timezone = value
		case "PTZ_LOG_LEVEL":
			config.LogLevel = value
		case "PTZ_LOG_OUTPUT":
			config.LogOutput = value
		case "PTZ_LOG_DIRECTORY":
			config.LogDir = value
		case "PTZ_SESSION_FILE":
			config.SessionFile = value

		/* Backend API */
		case "PTZ_API_BASE_URL":
			config.API.BaseURL = value
		case "PTZ_API_ADDITIONAL_ROUTE":
			config.API.AdditionalRoute = value
		case "PTZ_API_CLIENT_ID":
			config.API.ClientID = value
		case "PTZ_API_CLIENT_SECRET":
			config.API.ClientSecret = value
		case "PTZ_API_TIMEOUT_MS":
			setInt(&config.API.TimeoutMs, value)
		case "PTZ_API_FETCH_TIMEOUT_MS":
			setInt(&config.API.FetchTimeoutMs, value)

		/* MQTT */
		case "PTZ_MQTT_BROKER":
			config.MQTT.Broker = value
		case "PTZ_MQTT_PORT":
			setInt(&config.MQTT.Port, value)
		case "PTZ_MQTT_USERNAME":
			config.MQTT.Username = value
		case "PTZ_MQTT_PASSWORD":
			config.MQTT.Password = value
		case "PTZ_MQTT_TOPIC":
			config.MQTT.Topic = value
		case "PTZ_MQTT_SUBSCRIBE_TOPIC":
			config.MQTT.SubscribeTopic = value
		case "PTZ_MQTT_CONTROL_TOPIC":
			config.MQTT.ControlTopic = value

		/* Motion loop */
		case "PTZ_FUNCTION_ID":
			setInt(&config.PTZ.FunctionID, value)
		case "PTZ_ONVIF_PORT":
			setInt(&config.PTZ.OnvifPort, value)
		case "PTZ_TICK_INTERVAL_MS":
			setInt(&config.PTZ.TickIntervalMs, value)
		case "PTZ_RECALL_SPEED":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				config.PTZ.RecallSpeed = f
			}

		/* Capture and motion */
		case "PTZ_CAPTURE_ENABLED":
			config.Capture.Enabled = value
		case "PTZ_MOTION_ENABLED":
			config.Motion.Enabled = value

		/* Storage */
		case "PTZ_PRESETS_FILE":
			config.Presets.File = value
		case "PTZ_STORAGE_CLOUD":
			config.Storage.Cloud = value
		case "PTZ_STORAGE_IMAGE_DIRECTORY":
			config.Storage.ImageDirectory = value
		case "PTZ_S3_ENDPOINT":
			config.Storage.S3.Endpoint = value
		case "PTZ_S3_REGION":
			config.Storage.S3.Region = value
		case "PTZ_S3_BUCKET":
			config.Storage.S3.Bucket = value
		case "PTZ_S3_ACCESS_KEY":
			config.Storage.S3.AccessKey = value
		case "PTZ_S3_SECRET_KEY":
			config.Storage.S3.SecretKey = value

		/* HTTP server */
		case "PTZ_SERVER_PORT":
			config.Server.Port = value
		}
	}
}

func setInt(target *int, value string) {
	if v, err := strconv.Atoi(value); err == nil {
		*target = v
	}
}

// resolvePaths makes relative file locations relative to the config
// directory.
func resolvePaths(configDirectory string, config *models.Config) {
	for _, p := range []*string{&config.SessionFile, &config.Presets.File, &config.Storage.ImageDirectory, &config.LogDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDirectory, *p)
		}
	}
}

// StoreConfig writes the configuration back to config.json.
func StoreConfig(configDirectory string, config models.Config) error {
	res, err := json.MarshalIndent(config, "", "\t")
	if err != nil {
		return err
	}
	dir := filepath.Join(configDirectory, "data", "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), res, 0o644)
}
