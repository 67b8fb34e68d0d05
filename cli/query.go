package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"go-cycle/mini"
	"go-cycle/pattern"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	Cycles    int64
	From      int64
	Fragments bool
}

// HapView is a hap as printed by query.
type HapView struct {
	Begin string  `json:"begin"`
	End   string  `json:"end"`
	Part  string  `json:"part,omitempty"`
	Onset float64 `json:"onset"`
	Value any     `json:"value"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{}
	cmd := &cobra.Command{
		Use:   "query <mini-notation>",
		Short: "Print the events a pattern produces",
		Long: `Parse a mini-notation pattern and print its events over a number of
cycles. By default only events starting inside the window are printed.`,
		Example: `  go-cycle query "bd*2 [~ sd]" --cycles 2
  go-cycle query "<c3 e3>(3,8)" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, opts, args[0], cmd)
		},
	}
	cmd.Flags().Int64VarP(&opts.Cycles, "cycles", "n", 1, "number of cycles to query")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first cycle")
	cmd.Flags().BoolVar(&opts.Fragments, "fragments", false, "include fragments of events starting before the window")
	return cmd
}

func runQuery(root *RootOptions, opts *QueryOptions, src string, cmd *cobra.Command) error {
	if opts.Cycles < 1 {
		return WrapExitError(ExitCommandError, "invalid --cycles", fmt.Errorf("%d < 1", opts.Cycles))
	}
	p, err := mini.Parse(src)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse", err)
	}
	views := QueryHaps(p, pattern.Arc(opts.From, opts.From+opts.Cycles), opts.Fragments)

	f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
	return f.Success(views, func(w io.Writer) {
		for _, v := range views {
			line := fmt.Sprintf("%-6s %-6s %v", v.Begin, v.End, v.Value)
			if v.Part != "" {
				line += "  (" + v.Part + ")"
			}
			fmt.Fprintln(w, line)
		}
	})
}

// QueryHaps renders the haps of p over span in onset order. Without
// fragments only haps whose onset lies inside span are kept.
func QueryHaps(p pattern.Pattern, span pattern.TimeSpan, fragments bool) []HapView {
	var haps []pattern.Hap
	if fragments {
		haps = p.Query(span)
		sort.SliceStable(haps, func(i, j int) bool {
			return haps[i].Part.Begin.Lt(haps[j].Part.Begin)
		})
	} else {
		haps = p.Onsets(span)
	}
	out := make([]HapView, 0, len(haps))
	for _, h := range haps {
		whole := h.WholeOrPart()
		v := HapView{
			Begin: whole.Begin.String(),
			End:   whole.End.String(),
			Onset: whole.Begin.Float(),
			Value: pattern.Resolve(h.Value),
		}
		if !h.HasOnset() || !h.Part.Equal(whole) {
			v.Part = h.Part.String()
		}
		out = append(out, v)
	}
	return out
}
