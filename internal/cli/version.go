package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"socialgraph.relay/sgr/internal/types"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sgr version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sgr %s (built %s, %s %s/%s)\n",
				types.Version, types.BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
