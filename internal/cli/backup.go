package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/weightlog/internal/backup"
)

func newBackupCmd(a *app) *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload the journal files to S3-compatible storage",
		Long: `Backup uploads entries.json, sync_metadata.json and goal.json (when set) under
<prefix>/<UTC timestamp>/ in the configured bucket. Credentials come from
backup.access_key_id/secret_access_key, WEIGHTLOG_BACKUP_* variables, or the
default AWS credential chain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.settings.Backup
			if bucket != "" {
				cfg.Bucket = bucket
			}
			if cfg.Bucket == "" {
				return fmt.Errorf("set backup.bucket in config.yaml or pass --bucket: %w", backup.ErrBucketRequired)
			}

			j, err := a.openJournal()
			if err != nil {
				return err
			}
			client, err := backup.NewClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			u, err := backup.NewUploader(client, cfg, a.log)
			if err != nil {
				return err
			}
			keys, err := u.Backup(cmd.Context(), j)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded s3://%s/%s\n", cfg.Bucket, k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket name (overrides backup.bucket)")
	return cmd
}
