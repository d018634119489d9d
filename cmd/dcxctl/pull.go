package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adobe/dcxsync/composite"
	"github.com/adobe/dcxsync/dcxcontext"
	"github.com/adobe/dcxsync/transfer"
)

var pullKeepLocal bool

// PullCmd drives one pull-then-resolve cycle (spec.md §4.7). By default it
// performs a trivial fast-forward resolution: the freshly pulled branch
// becomes the new current outright. --keep-local instead folds every
// locally modified subtree of current into the pulled branch via
// composite.MergeCurrentIntoPulled before resolving, a mechanical "current
// wins where it touched something" merge with no interactive conflict
// resolution. A host application wanting to let a user pick between
// conflicting versions would build its own merged *dom.Manifest and pass
// that to ResolvePull instead of using either of these.
var PullCmd = &cobra.Command{
	Use:   "pull <local-path>",
	Short: "`pull` fetches remote changes and resolves them into current",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("config: %v", err)
		}
		c, err := composite.OpenFromLocalPath(args[0], nil)
		if err != nil {
			fatalf("open failed: %v", err)
		}
		ctx := dcxcontext.WithLogger(cmd.Context(), logrus.WithField("composite", args[0]))
		session := newSession(cfg, nil)

		branch, err := transfer.Pull(ctx, c, session)
		if err != nil {
			fatalf("pull failed: %v", err)
		}
		if branch == nil {
			fmt.Println("already up to date")
			return
		}

		if pullKeepLocal {
			merged, skipped, err := c.MergeCurrentIntoPulled()
			if err != nil {
				fatalf("merging local changes: %v", err)
			}
			for _, id := range skipped {
				fmt.Printf("skipped local changes under %q: not folded into the pulled branch\n", id)
			}
			if err := c.ResolvePull(merged); err != nil {
				fatalf("resolving pull: %v", err)
			}
		} else {
			merged, err := c.MutableBranchByName("pulled")
			if err != nil {
				fatalf("reading pulled branch: %v", err)
			}
			if err := c.ResolvePull(merged); err != nil {
				fatalf("resolving pull: %v", err)
			}
		}
		if cfg.AutoReclaim {
			if _, err := c.RemoveUnusedLocalFiles(); err != nil {
				fatalf("auto-reclaim: %v", err)
			}
		}
		fmt.Println("pulled")
	},
}

func init() {
	PullCmd.Flags().BoolVar(&pullKeepLocal, "keep-local", false, "fold locally modified subtrees into the pulled branch instead of discarding them")
}
