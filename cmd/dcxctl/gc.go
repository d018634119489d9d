package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adobe/dcxsync/composite"
)

// GCCmd reclaims component asset files no longer referenced by any branch
// (spec.md §4.5's mark-and-sweep reclamation).
var GCCmd = &cobra.Command{
	Use:   "gc <local-path>",
	Short: "`gc` removes unreferenced local component files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := composite.OpenFromLocalPath(args[0], nil)
		if err != nil {
			fatalf("open failed: %v", err)
		}
		freed, err := c.RemoveUnusedLocalFiles()
		if err != nil {
			fatalf("gc failed: %v", err)
		}
		fmt.Printf("freed %d bytes\n", freed)
	},
}
