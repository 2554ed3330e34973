package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/shopping"
)

func newShareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Print the categories marked for sharing with their items",
		Long: `Print every category toggled for sharing, followed by its items, in the
plain-text form used by the share endpoint. The output ignores --format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				session, err := shopping.NewSession(ctx, repo, nil, a.logger.With("component", "session"))
				if err != nil {
					return err
				}
				defer session.Close()

				text, err := session.ShareSelectedCategories(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(a.out, text)
				return err
			})
		},
	}
}
