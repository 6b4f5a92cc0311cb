package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kokoro/src/daemon"
)

// schemaCmd prints request schemas
var schemaCmd = &cobra.Command{
	Use:   "schema [name]",
	Short: "Print the JSON Schema of a daemon request body",
	Long:  "Print the JSON Schema of a daemon request body. Known names: " + strings.Join(daemon.SchemaNames(), ", "),
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, name := range daemon.SchemaNames() {
				fmt.Println(name)
			}
			return nil
		}

		schema, err := daemon.Schema(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(schema)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
