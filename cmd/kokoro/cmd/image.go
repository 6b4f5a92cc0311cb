package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"kokoro/src/app"
	"kokoro/src/image"
)

var imageReq image.Request

// imageCmd generates a character portrait
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Generate a character portrait",
	Long: `Walk the image provider chain for a portrait. When every provider fails
a curated reference image for the gender and art style is returned.`,
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

		resp := a.Images.Generate(ctx, imageReq)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)

	f := imageCmd.Flags()
	f.StringVar(&imageReq.Name, "name", "", "character name")
	f.StringVar(&imageReq.Gender, "gender", "nonbinary", "male, female or nonbinary")
	f.StringVar(&imageReq.ArtStyle, "style", "anime", "anime, 3d, comic or realistic")
	f.StringVar(&imageReq.HairColor, "hair", "", "hair color")
	f.StringVar(&imageReq.EyeColor, "eyes", "", "eye color")
	f.StringSliceVarP(&imageReq.PersonalityTraits, "traits", "t", nil, "personality traits (comma-separated)")
}
