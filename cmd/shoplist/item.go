package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/shopping"
)

func newItemCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage items within a category",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list CATEGORY_ID",
		Short: "List the items of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				items, err := repo.ItemsByCategory(ctx, categoryID)
				if err != nil {
					return err
				}
				return renderItems(a.out, a.format, items)
			})
		},
	})

	var addQuantity int
	add := &cobra.Command{
		Use:   "add CATEGORY_ID NAME...",
		Short: "Add an item to a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				item, err := repo.InsertItem(ctx, model.Item{
					Name:       strings.Join(args[1:], " "),
					CategoryID: categoryID,
					Quantity:   addQuantity,
				})
				if err != nil {
					return err
				}
				return renderItem(a.out, a.format, *item)
			})
		},
	}
	add.Flags().IntVarP(&addQuantity, "quantity", "n", model.DefaultQuantity, "Quantity to buy")
	cmd.AddCommand(add)

	var (
		newName     string
		newQuantity int
		newCategory int64
	)
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Change an item's name, quantity or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				existing, err := repo.Item(ctx, id)
				if err != nil {
					return err
				}
				if existing == nil {
					return fmt.Errorf("item %d not found", id)
				}

				flags := cmd.Flags()
				if flags.Changed("name") {
					existing.Name = newName
				}
				if flags.Changed("quantity") {
					existing.Quantity = newQuantity
				}
				if flags.Changed("category") {
					existing.CategoryID = newCategory
				}

				item, err := repo.UpdateItem(ctx, *existing)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}
				return renderItem(a.out, a.format, *item)
			})
		},
	}
	update.Flags().StringVar(&newName, "name", "", "New item name")
	update.Flags().IntVarP(&newQuantity, "quantity", "n", 0, "New quantity")
	update.Flags().Int64Var(&newCategory, "category", 0, "Move the item to this category")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				return repo.DeleteItem(ctx, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check ID",
		Short: "Toggle whether an item has been picked up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withRepository(ctx, func(_ *database.DB, repo *shopping.Repository) error {
				item, err := repo.ToggleItemChecked(ctx, id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}
				return renderItem(a.out, a.format, *item)
			})
		},
	})

	return cmd
}
