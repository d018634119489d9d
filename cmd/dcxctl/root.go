// Command dcxctl is a reference host application for dcxsync (spec.md §1's
// "not itself part of the core"), structured the way the teacher's registry
// binary is: one cobra.Command per operation, a shared config flag, and a
// context carrying a configured logger (registry/root.go's pattern).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adobe/dcxsync/dcxconfig"
)

var configPath string

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to dcxsync client config (yaml)")
	RootCmd.AddCommand(InitCmd)
	RootCmd.AddCommand(AddCmd)
	RootCmd.AddCommand(CommitCmd)
	RootCmd.AddCommand(PushCmd)
	RootCmd.AddCommand(PullCmd)
	RootCmd.AddCommand(GCCmd)
	RootCmd.AddCommand(StatusCmd)
}

// RootCmd is the main command for the dcxctl binary.
var RootCmd = &cobra.Command{
	Use:   "dcxctl",
	Short: "`dcxctl` synchronizes a local composite with a remote object store",
	Run: func(cmd *cobra.Command, args []string) {
		// nolint:errcheck
		cmd.Usage()
	},
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*dcxconfig.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return dcxconfig.LoadFile(configPath)
}

func fatalf(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
	os.Exit(1)
}
