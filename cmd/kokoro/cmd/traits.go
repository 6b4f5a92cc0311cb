package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kokoro/src/personality"
)

var traitsCatalog string

// traitsCmd lists the trait catalogue
var traitsCmd = &cobra.Command{
	Use:   "traits",
	Short: "List known personality traits",
	Long: `List the trait catalogue in precedence order. --catalog validates and
lists a custom catalogue file instead of the built-in one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := personality.DefaultCatalog()
		if traitsCatalog != "" {
			var err error
			if catalog, err = personality.LoadCatalogFile(traitsCatalog); err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRAIT\tDESCRIPTION")
		for _, t := range catalog.Traits {
			fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(traitsCmd)
	traitsCmd.Flags().StringVar(&traitsCatalog, "catalog", "", "path to a trait catalogue TOML file")
}
