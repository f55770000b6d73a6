// Command workers runs the certificate pipeline and its operator tooling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "time/tzdata"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "workers",
		Short:         "Good-standing certificate job workers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(requeueCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(deadCmd())
	rootCmd.AddCommand(recoverCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
