package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/huyquang-bka/ptz-chp/src/config"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/spf13/cobra"
)

var configDirectory string
var jsonOutput bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ptz-agent",
	Short: "Control PTZ cameras and relay motion events",
	Long: `Drives ONVIF PTZ cameras from the REST API and MQTT, keeps named
presets per camera and publishes motion snapshots to the event bus.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirectory, "config", ".", "directory containing data/config/config.json")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
}

// loadConfig opens the configuration and sets up the logger with it.
func loadConfig() models.Config {
	cfg, err := config.OpenConfig(configDirectory)
	if err != nil {
		fmt.Printf("Error reading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.LogOutput != "" {
		log.Log.Logger = cfg.LogOutput
	}
	timezone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		timezone = time.Local
	}
	log.Log.Init(cfg.LogLevel, cfg.LogDir, timezone)
	return cfg
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
