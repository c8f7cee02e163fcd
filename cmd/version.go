// =============================================================================
// LDCC1 Processor - Version Command
// =============================================================================
//
// This file defines the 'version' command. Besides the release version it
// prints the source revision the binary was built from, so a run folder can
// be traced back to the exact code that produced its documents.
//
// COMMAND USAGE:
//   ldcc1 version
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is the release version, set with
// -ldflags "-X github.com/ginjaninja78/ldcc1-processor/cmd.Version=...".
var Version = "dev"

// buildInfo is what the Go toolchain recorded about the binary.
type buildInfo struct {
	Revision string
	Modified bool
	Time     string
}

// readBuildInfo returns the VCS stamp of the binary, if any.
func readBuildInfo() buildInfo {
	var b buildInfo
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		case "vcs.time":
			b.Time = s.Value
		}
	}
	return b
}

func printVersion(w io.Writer, b buildInfo) {
	fmt.Fprintln(w, "LDCC1 Processor")
	fmt.Fprintf(w, "Version:    %s\n", Version)

	revision := b.Revision
	if revision == "" {
		revision = "unknown"
	} else if b.Modified {
		revision += " (modified)"
	}
	fmt.Fprintf(w, "Revision:   %s\n", revision)
	if b.Time != "" {
		fmt.Fprintf(w, "Committed:  %s\n", b.Time)
	}
	fmt.Fprintf(w, "Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version and source revision",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), readBuildInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
