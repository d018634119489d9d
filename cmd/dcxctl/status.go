package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adobe/dcxsync/composite"
)

// StatusCmd prints current's identity, binding, and per-component state,
// the read-only inspection counterpart to the other subcommands.
var StatusCmd = &cobra.Command{
	Use:   "status <local-path>",
	Short: "`status` prints current's composite and component state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := composite.OpenFromLocalPath(args[0], nil)
		if err != nil {
			fatalf("open failed: %v", err)
		}
		current := c.Current()
		fmt.Printf("composite %s (%s) type=%s state=%s href=%s\n",
			current.CompositeID(), current.Name(), current.Type(), current.CompositeState(), current.CompositeHref())
		for _, comp := range current.AllComponents() {
			path, _ := current.AbsolutePath(comp.ID)
			fmt.Printf("  %s\t%s\t%s\n", comp.State, path, comp.ID)
		}
		if c.Pulled() != nil {
			fmt.Println("pulled: pending resolution")
		}
		if c.Pushed() != nil {
			fmt.Println("pushed: pending accept")
		}
	},
}
