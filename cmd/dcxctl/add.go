package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/adobe/dcxsync/composite"
	"github.com/adobe/dcxsync/dom"
)

// AddCmd adds a new component at the root carrying the contents of
// source-file, then commits, the common local-edit path exercised by the
// push tests' fixtures.
var AddCmd = &cobra.Command{
	Use:   "add <local-path> <component-path> <source-file>",
	Short: "`add` adds a new component from a local file and commits",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := composite.OpenFromLocalPath(args[0], nil)
		if err != nil {
			fatalf("open failed: %v", err)
		}
		content, err := os.ReadFile(args[2])
		if err != nil {
			fatalf("reading source file: %v", err)
		}
		if _, err := c.AddComponentWithContent(dom.RootID, dom.ComponentSpec{
			Name: args[1], Path: args[1],
		}, content); err != nil {
			fatalf("add failed: %v", err)
		}
		if err := c.CommitChanges(); err != nil {
			fatalf("commit failed: %v", err)
		}
	},
}
