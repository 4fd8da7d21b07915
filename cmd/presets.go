package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/huyquang-bka/ptz-chp/src/presets"
	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets <camera_id>",
	Short: "List the stored presets of a camera",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cameraID, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("Error: camera_id must be an integer")
			os.Exit(1)
		}
		cfg := loadConfig()
		list := presets.NewStore(cfg.Presets.File).Get(strconv.Itoa(cameraID))

		if jsonOutput {
			printJSON(list)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tNAME\tPAN\tTILT\tZOOM")
		fmt.Fprintln(w, "-----\t----\t---\t----\t----")
		for _, p := range list {
			if p.Position == nil {
				fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", p.Token, p.Name)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%.3f\n", p.Token, p.Name, p.Position.Pan, p.Position.Tilt, p.Position.Zoom)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
