package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcus/fin/internal/dateparse"
	"github.com/marcus/fin/internal/models"
	"github.com/marcus/fin/internal/output"
	finsync "github.com/marcus/fin/internal/sync"
)

var txnCmd = &cobra.Command{
	Use:     "txn",
	Aliases: []string{"tx"},
	Short:   "Manage transactions",
	GroupID: "ledger",
}

var txnAddCmd = &cobra.Command{
	Use:   "add [amount]",
	Short: "Add a transaction",
	Long: `Add a transaction. The entry type (expense or income) follows the
category. Dates accept YYYY-MM-DD, "today", "yesterday", "-3d", or a
weekday name for the most recent occurrence.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var amount float64
		if _, err := fmt.Sscanf(args[0], "%f", &amount); err != nil || amount <= 0 {
			return fmt.Errorf("invalid amount %q", args[0])
		}

		categoryID, _ := cmd.Flags().GetString("category")
		note, _ := cmd.Flags().GetString("note")
		dateStr, _ := cmd.Flags().GetString("date")

		date, err := dateparse.ParseDate(dateStr)
		if err != nil {
			return err
		}

		store, userID, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		cat, err := store.GetCategory(categoryID)
		if err != nil {
			return err
		}
		if cat == nil || cat.IsDeleted {
			return fmt.Errorf("category %s not found; see 'fin category list'", categoryID)
		}

		txn := models.Transaction{
			ID:         "txn-" + uuid.NewString(),
			CategoryID: cat.ID,
			Type:       cat.Type,
			Amount:     amount,
			Note:       note,
			Date:       date,
		}
		if _, err := finsync.StageTransactionPut(store, userID, txn); err != nil {
			return err
		}
		output.Success("added %s %s (%s)", output.FormatAmount(txn.Type, txn.Amount), cat.Name, txn.ID)
		output.Info("queued for next sync")
		return nil
	},
}

var txnListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List transactions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, _, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		txns, err := store.ListTransactions(false)
		if err != nil {
			return err
		}
		if len(txns) == 0 {
			output.Info("no transactions; add one with 'fin txn add'")
			return nil
		}
		if limit > 0 && len(txns) > limit {
			txns = txns[:limit]
		}
		for _, t := range txns {
			name := ""
			if cat, err := store.GetCategory(t.CategoryID); err == nil && cat != nil {
				name = cat.Name
			}
			pending, err := store.PendingForEntity(t.ID)
			if err != nil {
				return err
			}
			output.Info("%s", output.FormatTransactionLine(t, name, len(pending) > 0))
		}
		return nil
	},
}

var txnRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		txn, err := store.GetTransaction(args[0])
		if err != nil {
			return err
		}
		if txn == nil || txn.IsDeleted {
			return fmt.Errorf("transaction %s not found", args[0])
		}
		if _, err := finsync.StageTransactionDelete(store, args[0]); err != nil {
			return err
		}
		output.Success("deleted transaction %s", args[0])
		output.Info("queued for next sync")
		return nil
	},
}

func init() {
	txnAddCmd.Flags().String("category", "", "category id (required)")
	txnAddCmd.Flags().String("note", "", "free-form note")
	txnAddCmd.Flags().String("date", "today", "transaction date")
	txnAddCmd.MarkFlagRequired("category")
	txnListCmd.Flags().Int("limit", 20, "maximum rows to print (0 = all)")
	txnCmd.AddCommand(txnAddCmd, txnListCmd, txnRmCmd)
	rootCmd.AddCommand(txnCmd)
}
