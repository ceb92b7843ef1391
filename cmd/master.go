package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/calder-retail/replenish-cli/internal/master"
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Manage product and market master data",
}

// -- master import --

var masterImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import master CSVs into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("master"); err != nil {
			return err
		}

		productsPath, _ := cmd.Flags().GetString("products")
		marketsPath, _ := cmd.Flags().GetString("markets")
		if productsPath == "" && marketsPath == "" {
			return eris.New("nothing to import: pass --products and/or --markets")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if productsPath != "" {
			n, err := master.ImportProducts(ctx, st, productsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Imported %d products from %s\n", n, productsPath)
		}
		if marketsPath != "" {
			n, err := master.ImportMarkets(ctx, st, marketsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Imported %d markets from %s\n", n, marketsPath)
		}
		return nil
	},
}

// -- master list --

var masterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored products and markets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		products, err := st.Products(ctx)
		if err != nil {
			return eris.Wrap(err, "master list")
		}
		markets, err := st.Markets(ctx)
		if err != nil {
			return eris.Wrap(err, "master list")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SKU\tSUPPLIER\tMOQ\tPACKAGE\tMXOQ")
		for _, p := range products {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", p.SKU, p.SupplierID, p.MOQ, p.Package, p.MxOQ)
		}
		w.Flush()

		fmt.Fprintf(os.Stdout, "\n%d products, %d markets: %v\n", len(products), len(markets), markets)
		return nil
	},
}

func init() {
	masterImportCmd.Flags().String("products", "", "products master CSV path")
	masterImportCmd.Flags().String("markets", "", "markets master CSV path")

	masterCmd.AddCommand(masterImportCmd)
	masterCmd.AddCommand(masterListCmd)
	rootCmd.AddCommand(masterCmd)
}
