package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kokoro/src/composer"
	"kokoro/src/personality"
)

var (
	profileName   string
	profileGender string
	profileTraits []string
	profilePrompt bool
)

// profileCmd shows what the engine derives for a message
var profileCmd = &cobra.Command{
	Use:   "profile <message>",
	Short: "Print the personality profile derived for a message",
	Long: `Derive the per-turn personality profile without calling any provider.

With --prompt the composed system prompt is printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		character := personality.Character{
			Name:              profileName,
			Gender:            profileGender,
			PersonalityTraits: profileTraits,
		}
		profile := personality.Derive(character, strings.Join(args, " "), nil)

		if profilePrompt {
			fmt.Println(composer.Compose(character, profile))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)

	profileCmd.Flags().StringVar(&profileName, "name", "Companion", "character name")
	profileCmd.Flags().StringVar(&profileGender, "gender", "", "character gender")
	profileCmd.Flags().StringSliceVarP(&profileTraits, "traits", "t", nil, "personality traits (comma-separated)")
	profileCmd.Flags().BoolVar(&profilePrompt, "prompt", false, "print the composed system prompt")
}
