package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/service"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().String("customer", "", "Check a single customer id instead of all customers")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare stored balances with the sum of each ledger",
	Long: `Recompute every customer's ledger sum and compare it with the stored
credit balance. Exits non-zero when any customer is out of balance.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString("customer")

		e, err := openEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()
		return runReconcile(cmd.Context(), e.svc, id, cmd.OutOrStdout())
	},
}

type reconciler interface {
	Reconcile(ctx context.Context, id uuid.UUID) (*service.Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]service.Reconciliation, error)
}

var errOutOfBalance = errors.New("ledger out of balance")

func runReconcile(ctx context.Context, svc reconciler, customer string, w io.Writer) error {
	var results []service.Reconciliation
	if customer != "" {
		id, err := uuid.Parse(customer)
		if err != nil {
			return fmt.Errorf("invalid customer id %q: %w", customer, err)
		}
		rec, err := svc.Reconcile(ctx, id)
		if err != nil {
			return err
		}
		if !rec.Consistent {
			results = append(results, *rec)
		}
	} else {
		var err error
		if results, err = svc.ReconcileAll(ctx); err != nil {
			return err
		}
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "all balances match their ledgers")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CUSTOMER\tBALANCE\tLEDGER SUM\tDRIFT")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.CustomerID, r.Balance.StringFixed(2), r.LedgerSum.StringFixed(2), r.Drift().StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %d customer(s)", errOutOfBalance, len(results))
}
