package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/huyquang-bka/ptz-chp/src/api"
	"github.com/huyquang-bka/ptz-chp/src/fetch"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the PTZ devices of the backend",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := api.New(api.ConfigFrom(cfg.API), api.NewFileSessionStore(cfg.SessionFile))
		if client.Session().Empty() {
			fmt.Println("Error: Not logged in. Please run 'ptz-agent login' first.")
			os.Exit(1)
		}

		outcome := fetch.DeviceWorker(client, cfg.PTZ.FunctionID, cfg.API.FetchTimeout()).Run(context.Background())
		if outcome.Kind != fetch.Success {
			fmt.Printf("Error fetching devices (%s): %s\n", outcome.Kind, outcome.Message)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(outcome.Items)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCHECKPOINT\tPATH")
		fmt.Fprintln(w, "--\t----\t----------\t----")
		for _, d := range outcome.Items {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", d.ID, d.Name, d.CheckPointID, d.DevicePath)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
