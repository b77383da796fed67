package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/inkcloud/go-settings/pkg/stock"
)

func (a *app) stockCmd() *cobra.Command {
	var product, field string
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect and edit a product field's stock ledger",
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&product, "product", "p", "", "product id")
	flags.StringVarP(&field, "field", "f", "", "field id")
	_ = cmd.MarkPersistentFlagRequired("product")
	_ = cmd.MarkPersistentFlagRequired("field")

	var limit, offset int
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Print the stock entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStock(cmd.Context(), func(c *stock.Controller) error {
				entry, err := c.Fetch(cmd.Context(), product, field, stock.FetchOptions{Limit: limit, Offset: offset, Force: true})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entry)
			})
		},
	}
	fetch.Flags().IntVar(&limit, "limit", 0, "page size (0 for every item)")
	fetch.Flags().IntVar(&offset, "offset", 0, "page offset")

	add := &cobra.Command{
		Use:   "add <item>...",
		Short: "Append items to the end of the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStock(cmd.Context(), func(c *stock.Controller) error {
				added, err := c.Add(cmd.Context(), product, field, args)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d item(s)\n", added)
				return err
			})
		},
	}

	pull := &cobra.Command{
		Use:   "pull <quantity>",
		Short: "Remove and print items from the front of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[0])
			if err != nil || quantity <= 0 {
				return fmt.Errorf("quantity must be a positive integer, got %q", args[0])
			}
			return a.withStock(cmd.Context(), func(c *stock.Controller) error {
				items, err := c.Pull(cmd.Context(), product, field, quantity)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every item and leave infinite mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStock(cmd.Context(), func(c *stock.Controller) error {
				return c.Clear(cmd.Context(), product, field)
			})
		},
	}

	infinite := &cobra.Command{
		Use:   "infinite <value>",
		Short: "Serve value on every pull instead of queued items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStock(cmd.Context(), func(c *stock.Controller) error {
				return c.SetInfinite(cmd.Context(), product, field, args[0])
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <index>",
		Short: "Remove the item at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be an integer, got %q", args[0])
			}
			return a.withStock(cmd.Context(), func(c *stock.Controller) error {
				return c.RemoveAt(cmd.Context(), product, field, index)
			})
		},
	}

	cmd.AddCommand(fetch, add, pull, clearCmd, infinite, remove)
	return cmd
}

func (a *app) withStock(ctx context.Context, fn func(*stock.Controller) error) error {
	b, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	c := stock.NewController(b.ledger,
		stock.WithLogger(a.logger),
		stock.WithActivity(b.emitter(a)))
	return fn(c)
}
