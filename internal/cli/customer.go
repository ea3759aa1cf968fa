package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/richardliu001/pharmacy-credit/internal/model"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(customerCmd)
	customerCmd.AddCommand(customerCreateCmd)

	customerCreateCmd.Flags().StringP("name", "n", "", "Customer name")
	customerCreateCmd.Flags().StringP("phone", "p", "", "Contact phone")
	_ = customerCreateCmd.MarkFlagRequired("name")
}

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage credit customers",
}

var customerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a customer with a zero balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		phone, _ := cmd.Flags().GetString("phone")

		e, err := openEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()
		return createCustomer(cmd.Context(), e.svc, name, phone, cmd.OutOrStdout())
	},
}

type customerCreator interface {
	CreateCustomer(ctx context.Context, name, phone string) (*model.Customer, error)
}

func createCustomer(ctx context.Context, svc customerCreator, name, phone string, w io.Writer) error {
	c, err := svc.CreateCustomer(ctx, name, phone)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "created customer %s (%s), balance %s\n", c.ID, c.Name, c.CreditBalance.StringFixed(2))
	return nil
}
