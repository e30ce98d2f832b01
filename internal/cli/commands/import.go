package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"whomst/internal/cli"
	"whomst/internal/storage"
	"whomst/internal/store/files"
)

func (a *app) importCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy JSON entry files into the SQLite database",
		Long: "Copies every record from a files backend directory into the SQLite database, " +
			"removed entries included. Records already present are left alone, so the command can be re-run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from == "" {
				from = a.cfg.DataDir
			}
			src, err := files.New(from, nil)
			if err != nil {
				return fmt.Errorf("open source directory: %w", err)
			}
			defer src.Close()

			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath, nil)
			if err != nil {
				return err
			}
			defer repo.Close()

			added, err := repo.Import(cmd.Context(), src)
			if err != nil {
				return err
			}
			a.println(cli.RenderOK("Imported %d new entries from %s into %s", added, from, a.cfg.SQLiteDBPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Entry directory to read (defaults to the data directory)")
	return cmd
}
