// File: cmd/reactord/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// reactord runs the line echo server on the reactor engine.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-reactor/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.NewLogger("reactord").Error(err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "reactord",
		Short:         "reactor TCP echo server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newConfigCommand())
	return root
}
