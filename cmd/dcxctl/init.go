package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adobe/dcxsync/composite"
)

// InitCmd creates a brand-new, unbound composite on local disk.
var InitCmd = &cobra.Command{
	Use:   "init <local-path> <name> <type>",
	Short: "`init` creates a new composite on local disk",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := composite.NewEmpty(args[0], args[1], args[2], nil)
		if err != nil {
			fatalf("init failed: %v", err)
		}
		fmt.Println(c.Current().CompositeID())
	},
}
