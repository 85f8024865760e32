// Command poelog follows and parses the Path of Exile client log.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "poelog",
	Short: "Path of Exile client log tools",
	Long: `poelog turns the Path of Exile client log (Client.txt) into structured events.

Use "poelog tail" to follow the live log and "poelog parse" for saved logs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging on stderr")
}

// newLogger returns a debug logger on w when verbose is set, or nil.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	registerFlagCompletions()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
