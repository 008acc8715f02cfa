package main

import (
	"os"

	"github.com/codecat/go-libs/log"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "drcov2lcov",
		Short:         "Convert drcov coverage traces to LCOV line coverage",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			err := opts.loadConfigFile(c.Flags())
			if err != nil {
				return err
			}

			cfg, err := opts.validate()
			if err != nil {
				return err
			}

			paths, err := inputFiles(opts)
			if err != nil {
				return err
			}

			return newConverter(cfg).run(paths, cfg)
		},
	}
	opts.bindFlags(cmd.Flags())

	cmd.AddCommand(newInspectCommand())
	return cmd
}

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		log.Error("%s", err.Error())
		os.Exit(1)
	}
}
