package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sirupsen/logrus"

	"github.com/adobe/dcxsync/composite"
	"github.com/adobe/dcxsync/dcxcontext"
	"github.com/adobe/dcxsync/journal"
	"github.com/adobe/dcxsync/transfer"
)

// PushCmd drives one push-then-accept cycle (spec.md §4.7/§4.8): push
// uploads current's changes into the pushed branch and the journal, then
// accept folds pushed back into current once the journal reports complete.
var PushCmd = &cobra.Command{
	Use:   "push <local-path>",
	Short: "`push` uploads local changes and accepts them into current",
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

		if _, err := transfer.Push(ctx, c, session); err != nil {
			fatalf("push failed: %v", err)
		}
		j, err := journal.Open(c.Store(), c.Store().JournalPath())
		if err != nil {
			fatalf("opening push journal: %v", err)
		}
		if err := c.AcceptPush(j); err != nil {
			fatalf("accepting push: %v", err)
		}
		if cfg.AutoReclaim {
			if _, err := c.RemoveUnusedLocalFiles(); err != nil {
				fatalf("auto-reclaim: %v", err)
			}
		}
		fmt.Println(c.Current().CompositeHref())
	},
}
