package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/shopping"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func newCategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				categories, err := repo.Categories(ctx)
				if err != nil {
					return err
				}
				return renderCategories(a.out, a.format, categories)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME...",
		Short: "Add a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				c, err := repo.InsertCategory(ctx, model.Category{Name: strings.Join(args, " ")})
				if err != nil {
					return err
				}
				return renderCategory(a.out, a.format, *c)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME...",
		Short: "Rename a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				existing, err := repo.Category(ctx, id)
				if err != nil {
					return err
				}
				if existing == nil {
					return fmt.Errorf("category %d not found", id)
				}
				existing.Name = strings.Join(args[1:], " ")
				c, err := repo.UpdateCategory(ctx, *existing)
				if err != nil {
					return err
				}
				if c == nil {
					return fmt.Errorf("category %d not found", id)
				}
				return renderCategory(a.out, a.format, *c)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a category and all of its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				if err := repo.DeleteCategory(ctx, id); err != nil {
					return err
				}
				a.logger.Debug("deleted category", "id", id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle ID",
		Short: "Include or exclude a category when sharing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				c, err := repo.ToggleCategorySelected(ctx, id)
				if err != nil {
					return err
				}
				if c == nil {
					return fmt.Errorf("category %d not found", id)
				}
				return renderCategory(a.out, a.format, *c)
			})
		},
	})

	return cmd
}
