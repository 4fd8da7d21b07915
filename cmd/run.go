package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/huyquang-bka/ptz-chp/src/components"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var (
	port          string
	serviceAction string
)

// program runs the agent under the service manager.
type program struct {
	agent  *components.Agent
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	// Start must not block.
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := p.agent.Run(ctx); err != nil {
			log.Log.Error("cmd.program.Start(): agent stopped: " + err.Error())
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	log.Log.Info("cmd.program.Stop(): stopping agent")
	p.cancel()
	<-p.done
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent",
	Long: `Starts the motion loop, the capture pipeline, the MQTT bus and the REST
API. Can be installed as a system service with --service install.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if port != "" {
			cfg.Server.Port = port
		}

		directory, err := filepath.Abs(configDirectory)
		if err != nil {
			directory = configDirectory
		}
		svcConfig := &service.Config{
			Name:        "ptz-agent",
			DisplayName: "PTZ Agent",
			Description: "Controls PTZ cameras and relays motion events",
			Arguments:   []string{"run", "--config", directory},
		}
		if port != "" {
			svcConfig.Arguments = append(svcConfig.Arguments, "--port", port)
		}

		if serviceAction != "" {
			s, err := service.New(&program{}, svcConfig)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			if err := service.Control(s, serviceAction); err != nil {
				fmt.Printf("Failed to %s service: %v\n", serviceAction, err)
				os.Exit(1)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
			return
		}

		agent, err := components.NewAgent(cfg)
		if err != nil {
			fmt.Printf("Error starting agent: %v\n", err)
			os.Exit(1)
		}
		s, err := service.New(&program{agent: agent}, svcConfig)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		// Blocks until the service manager or an interrupt stops the agent.
		if err := s.Run(); err != nil {
			log.Log.Error("cmd.run: " + err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&port, "port", "", "REST API port, overrides server.port")
	runCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop")
}
