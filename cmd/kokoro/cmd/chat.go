package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kokoro/src/app"
)

var (
	chatCharacterID string
	chatID          string
	chatName        string
	chatGender      string
	chatTraits      []string
	chatJSON        bool
)

// chatCmd sends one message through the provider chain
var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message and print the reply",
	Long: `Send one message to a stored or ad hoc character and print the reply.

Examples:
  kokoro chat --name Mika --traits shy,caring "hi"
  kokoro chat --character <id> --chat <chat-id> "how was your day?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		ctx := context.Background()

		a, err := app.New(ctx, settings, newLogger(settings))
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		req := app.ChatRequest{
			Message:         strings.Join(args, " "),
			CharacterID:     chatCharacterID,
			ChatID:          chatID,
			CharacterTraits: chatTraits,
		}
		if chatName != "" {
			req.CharacterContext = &app.CharacterContext{Name: chatName, Gender: chatGender}
		}

		env, err := a.Chat(ctx, req)
		if err != nil {
			return err
		}

		if chatJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		}

		fmt.Println(env.Response)
		fmt.Fprintf(os.Stderr, "\n[%s, %dms", env.ModelUsed, env.TotalTimeMS)
		if env.LoveMeter != nil {
			fmt.Fprintf(os.Stderr, ", love meter %d", *env.LoveMeter)
		}
		fmt.Fprintln(os.Stderr, "]")
		if env.FallbackReason != "" {
			fmt.Fprintf(os.Stderr, "fallback: %s\n", env.FallbackReason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatCharacterID, "character", "", "stored character id")
	chatCmd.Flags().StringVar(&chatID, "chat", "", "stored chat id; persists the turn")
	chatCmd.Flags().StringVar(&chatName, "name", "", "ad hoc character name")
	chatCmd.Flags().StringVar(&chatGender, "gender", "", "ad hoc character gender")
	chatCmd.Flags().StringSliceVarP(&chatTraits, "traits", "t", nil, "ad hoc personality traits (comma-separated)")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "print the full response envelope")
}
