package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and record health-platform sync metadata",
	}
	cmd.AddCommand(newSyncMarkCmd(a), newSyncListCmd(a))
	return cmd
}

func newSyncMarkCmd(a *app) *cobra.Command {
	var platform string
	cmd := &cobra.Command{
		Use:   "mark <entry-id> <external-id>",
		Short: "Record that an entry was written to the health platform",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			r, err := j.MarkSynced(args[0], args[1], platform)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s synced to %s as %s\n", r.EntryID, r.Platform, r.ExternalID)
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "healthkit", "platform name")
	return cmd
}

func newSyncListCmd(a *app) *cobra.Command {
	var unsynced bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sync records, or entries not yet synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if unsynced {
				entries, err := j.Unsynced()
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(out, entries)
				}
				printEntries(out, entries, j.Unit())
				return nil
			}

			records, err := j.SyncRecords()
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No sync records")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(out, "%s  %s  %s  %s\n", r.EntryID, stamp(r.SyncedAt), r.Platform, r.ExternalID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unsynced, "unsynced", false, "list entries without a sync record")
	return cmd
}
