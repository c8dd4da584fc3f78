package cmds

import (
	"fmt"

	"github.com/goliatone/go-scope/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <scenario.yaml>",
		Short: "Validate a scenario file and compile its handlers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if _, err := f.Options(log.Logger); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: strictness=%s handlers=%d steps=%d\n", f.Strictness, len(f.Handlers), countSteps(f.Scenario))
			for _, h := range f.Handlers {
				fmt.Fprintf(out, "  %s (%s) %s\n", h.Name, h.Engine, h.Expr)
			}
			return nil
		},
	}
}
