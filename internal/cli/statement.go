package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/pharmacy-credit/internal/service"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statementCmd)
	statementCmd.Flags().String("customer", "", "Customer id")
	statementCmd.Flags().StringP("out", "o", "", "Output path (default credit-statement-<id>.xlsx)")
	statementCmd.Flags().Int("limit", service.MaxStatementRows, "Maximum number of newest transactions to include")
	_ = statementCmd.MarkFlagRequired("customer")
}

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Export a customer's credit statement as xlsx",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, _ := cmd.Flags().GetString("customer")
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")

		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid customer id %q: %w", raw, err)
		}
		if out == "" {
			out = fmt.Sprintf("credit-statement-%s.xlsx", id)
		}

		e, err := openEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()
		return writeStatement(cmd.Context(), e.svc, id, limit, out, cmd.OutOrStdout())
	},
}

type statementSource interface {
	Statement(ctx context.Context, id uuid.UUID, limit int, generatedAt time.Time) ([]byte, error)
}

func writeStatement(ctx context.Context, svc statementSource, id uuid.UUID, limit int, path string, w io.Writer) error {
	data, err := svc.Statement(ctx, id, limit, time.Now())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote statement for %s to %s\n", id, path)
	return nil
}
