package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"go-cycle/midi"
)

// listPorts is swapped out in tests.
var listPorts = midi.OutPorts

// NewPortsCommand creates the ports command.
func NewPortsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI output ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPorts(rootOpts, cmd)
		},
	}
}

func runPorts(opts *RootOptions, cmd *cobra.Command) error {
	ports := listPorts()
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(ports, func(w io.Writer) {
		if len(ports) == 0 {
			fmt.Fprintln(w, "no MIDI output ports")
			return
		}
		for i, p := range ports {
			fmt.Fprintf(w, "%2d  %s\n", i, p)
		}
	})
}
