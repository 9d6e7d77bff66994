package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcus/fin/internal/models"
	"github.com/marcus/fin/internal/output"
	finsync "github.com/marcus/fin/internal/sync"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"cat"},
	Short:   "Manage categories",
	GroupID: "ledger",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeFlag, _ := cmd.Flags().GetString("type")
		entryType := models.EntryType(strings.ToUpper(typeFlag))
		if !models.ValidEntryType(entryType) {
			return fmt.Errorf("invalid type %q (use expense or income)", typeFlag)
		}

		store, userID, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		cat := models.Category{
			ID:   "cat-" + uuid.NewString(),
			Name: args[0],
			Type: entryType,
		}
		if _, err := finsync.StageCategoryPut(store, userID, cat); err != nil {
			return err
		}
		output.Success("added category %s (%s)", cat.Name, cat.ID)
		output.Info("queued for next sync")
		return nil
	},
}

var categoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		store, _, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		cats, err := store.ListCategories(all)
		if err != nil {
			return err
		}
		if len(cats) == 0 {
			output.Info("no categories; add one with 'fin category add'")
			return nil
		}
		for _, c := range cats {
			pending, err := store.PendingForEntity(c.ID)
			if err != nil {
				return err
			}
			output.Info("%s", output.FormatCategoryLine(c, len(pending) > 0))
		}
		return nil
	},
}

var categoryRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		cat, err := store.GetCategory(args[0])
		if err != nil {
			return err
		}
		if cat == nil || cat.IsDeleted {
			return fmt.Errorf("category %s not found", args[0])
		}
		if _, err := finsync.StageCategoryDelete(store, args[0]); err != nil {
			return err
		}
		output.Success("deleted category %s", cat.Name)
		output.Info("queued for next sync")
		return nil
	},
}

func init() {
	categoryAddCmd.Flags().String("type", "expense", "category type: expense or income")
	categoryListCmd.Flags().Bool("all", false, "include deleted categories")
	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd, categoryRmCmd)
	rootCmd.AddCommand(categoryCmd)
}
