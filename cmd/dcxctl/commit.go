package main

import (
	"github.com/spf13/cobra"

	"github.com/adobe/dcxsync/composite"
)

// CommitCmd persists in-memory edits to current as the new committed
// manifest (spec.md §4.4's commit operation).
var CommitCmd = &cobra.Command{
	Use:   "commit <local-path>",
	Short: "`commit` writes current to disk",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := composite.OpenFromLocalPath(args[0], nil)
		if err != nil {
			fatalf("open failed: %v", err)
		}
		if err := c.CommitChanges(); err != nil {
			fatalf("commit failed: %v", err)
		}
	},
}
