package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/backup"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/shopping"
)

func newBackupCmd(a *app) *cobra.Command {
	var (
		dir        string
		passphrase string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and restore encrypted database backups",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Cobra runs only the nearest PersistentPreRunE.
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if dir != "" {
				a.cfg.BackupDir = dir
			}
			if passphrase != "" {
				a.cfg.BackupPassphrase = passphrase
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Backup directory (default $SHOPLIST_BACKUP_DIR or backups)")
	cmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "Encryption passphrase (default $SHOPLIST_BACKUP_PASSPHRASE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Write an encrypted snapshot of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepository(ctx, func(db *database.DB, _ *shopping.Repository) error {
				m := backup.NewManager(db.DB, a.cfg.BackupDir, a.cfg.BackupPassphrase, a.logger.With("component", "backup"))
				info, err := m.Create(ctx)
				if err != nil {
					return err
				}
				return renderBackups(a.out, a.format, []backup.Info{*info})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := a.backupManager().List()
			if err != nil {
				return err
			}
			return renderBackups(a.out, a.format, backups)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore [FILE]",
		Short: "Replace the database with a backup (the newest one by default)",
		Long: `Decrypt a backup, verify it and replace the database file with it. The
server must be stopped first; restore refuses to run while the database is open.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := ""
			if len(args) == 1 {
				src = args[0]
			} else {
				latest, err := a.backupManager().Latest()
				if err != nil {
					return err
				}
				src = latest.Path
			}

			if err := backup.Restore(cmd.Context(), src, a.cfg.DBPath, a.cfg.BackupPassphrase); err != nil {
				return err
			}
			a.logger.Info("database restored", "from", src, "db", a.cfg.DBPath)
			_, err := fmt.Fprintf(a.out, "Restored %s from %s\n", a.cfg.DBPath, src)
			return err
		},
	})

	return cmd
}

// backupManager returns a manager for directory operations that need no
// database handle.
func (a *app) backupManager() *backup.Manager {
	return backup.NewManager(nil, a.cfg.BackupDir, a.cfg.BackupPassphrase, a.logger.With("component", "backup"))
}
