package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// cliFlags holds the persistent flags shared by all subcommands.
type cliFlags struct {
	jsonOut bool
	quiet   bool
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "memtbx",
		Short: "Plan and simulate heap, pool and list configurations",
		Long: `memtbx checks whether a pool plan fits a heap and runs randomized
allocate/release workloads against a configured toolbox.

Configurations are YAML files:

  heap_capacity: 4096
  pools:
    - {blocks: 8, block_size: 16}
    - {blocks: 4, block_size: 64}`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flags.jsonOut, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress all output except errors")

	root.AddCommand(
		newPlanCmd(flags),
		newSimulateCmd(flags),
		newVersionCmd(),
	)
	return root
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printer writes command output unless quiet is set.
type printer struct {
	w     io.Writer
	quiet bool
}

func newPrinter(cmd *cobra.Command, flags *cliFlags) printer {
	return printer{w: cmd.OutOrStdout(), quiet: flags.quiet}
}

func (p printer) infof(format string, args ...any) {
	if !p.quiet {
		fmt.Fprintf(p.w, format, args...)
	}
}

// printJSON outputs v as indented JSON. It ignores quiet.
func (p printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
