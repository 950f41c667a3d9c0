// Command gitstore-demo exercises the gitstore library end to end: opening
// a repository, writing files through a batch, inspecting history, and
// running a disk sync. It is the only place in this module that logs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mhalle/gitstore"
)

var (
	repoPath string
	branch   string
	logger   *zap.Logger
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitstore-demo",
		Short: "Demonstrates the gitstore library against a bare repository",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&repoPath, "repo", "./gitstore-demo.git", "path to the bare repository")
	cmd.PersistentFlags().StringVar(&branch, "branch", "main", "branch to operate on")

	cmd.AddCommand(newWriteCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newSyncInCmd())
	return cmd
}

func openStore() (*gitstore.GitStore, error) {
	return gitstore.Open(repoPath, gitstore.OpenOptions{Create: true, Branch: branch})
}

func newWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write PATH TEXT",
		Short: "Write a single file and commit it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			b := &branch
			fs, err := store.Fs(b)
			if err != nil {
				return err
			}
			newFs, err := fs.WriteText(args[0], args[1], gitstore.WriteOptions{})
			if err != nil {
				return err
			}
			logger.Info("wrote file",
				zap.String("path", args[0]),
				zap.String("commit", newFs.CommitHash()),
			)
			return nil
		},
	}
	return cmd
}

func newLogCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print commit history for the branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			b := &branch
			fs, err := store.Fs(b)
			if err != nil {
				return err
			}
			entries, err := fs.Log(gitstore.LogOptions{Limit: limit})
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s %s\n", e.Hash[:12], e.Message)
			}
			logger.Info("printed log", zap.Int("count", len(entries)))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of commits to print")
	return cmd
}

func newSyncInCmd() *cobra.Command {
	var storeDir string
	cmd := &cobra.Command{
		Use:   "sync-in DISK_DIR",
		Short: "Sync a disk directory into the branch, deleting what's missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			b := &branch
			fs, err := store.Fs(b)
			if err != nil {
				return err
			}
			_, report, err := fs.SyncIn(args[0], storeDir, gitstore.DefaultSyncOptions())
			if err != nil {
				return err
			}
			logger.Info("synced directory",
				zap.String("disk_dir", args[0]),
				zap.Int("added", len(report.Add)),
				zap.Int("updated", len(report.Update)),
				zap.Int("deleted", len(report.Delete)),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&storeDir, "store-dir", "", "destination directory within the store")
	return cmd
}
