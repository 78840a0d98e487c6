package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potential/internal/config"
	"github.com/danielpatrickdp/potential/internal/store"
)

// #region save
var (
	saveName string
	saveNote string

	saveCmd = &cobra.Command{
		Use:   "save <file>",
		Short: "Validate a definition file and store it as the active version",
		Args:  cobra.ExactArgs(1),
		RunE:  runSave,
	}
)

func init() {
	saveCmd.Flags().StringVar(&saveName, "name", "", "catalog name (default: the definition's name or file base)")
	saveCmd.Flags().StringVar(&saveNote, "note", "", "free-text note stored with the version")
}

func runSave(cmd *cobra.Command, args []string) error {
	def, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if saveName != "" {
		def.Name = saveName
	}

	st, err := store.NewStore(serverCfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Save(def, saveNote)
	if err != nil {
		return err
	}
	logger.Info("potential saved", "name", rec.Name, "version_id", rec.VersionID, "parent_id", rec.ParentID)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rec.Name, rec.VersionID)
	return nil
}

// #endregion save

// #region rollback
var rollbackCmd = &cobra.Command{
	Use:   "rollback <name> <version-id>",
	Short: "Point a name back at one of its earlier versions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewStore(serverCfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Rollback(args[0], args[1]); err != nil {
			return err
		}
		logger.Info("potential rolled back", "name", args[0], "version_id", args[1])
		return nil
	},
}

// #endregion rollback
