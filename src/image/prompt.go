package image

import (
	"fmt"
	"strings"

	"kokoro/src/personality"
)

// Request describes the character whose portrait is generated.
type Request struct {
	Name              string   `json:"name" jsonschema:"required"`
	Gender            string   `json:"gender" jsonschema:"required"`
	Height            string   `json:"height,omitempty"`
	Build             string   `json:"build,omitempty"`
	EyeColor          string   `json:"eye_color,omitempty"`
	HairColor         string   `json:"hair_color,omitempty"`
	SkinTone          string   `json:"skin_tone,omitempty"`
	PersonalityTraits []string `json:"personality_traits,omitempty"`
	ArtStyle          string   `json:"art_style,omitempty"`
}

// Prompt is what every image provider receives.
type Prompt struct {
	Text        string
	Negative    string
	StylePreset string
}

// NegativePrompt is shared by all styles.
const NegativePrompt = "low quality, blurry, distorted, deformed, ugly, bad anatomy, extra limbs, missing limbs, " +
	"extra fingers, missing fingers, text, watermark, signature, logo, multiple people, nsfw, nude, naked, " +
	"inappropriate, bad hands, malformed hands, duplicate, cropped, out of frame, worst quality, low resolution, pixelated"

type styleTemplate struct {
	prefix  string
	details string
	quality string
	preset  string
}

var styleTemplates = map[string]styleTemplate{
	"anime": {
		prefix:  "anime style, manga style, cel shaded",
		details: "large expressive eyes, vibrant colors, soft cel-shading, clean line art, anime proportions, detailed hair, kawaii aesthetic",
		quality: "high quality anime art, studio quality, detailed anime illustration, masterpiece",
		preset:  "anime",
	},
	"3d": {
		prefix:  "3d render, digital art, cgi",
		details: "realistic 3d rendering, soft lighting, detailed textures, modern 3d art style, smooth surfaces, professional 3d modeling",
		quality: "high quality 3d render, octane render, unreal engine, photorealistic 3d, masterpiece",
		preset:  "3d-model",
	},
	"comic": {
		prefix:  "comic book style, western comic art",
		details: "bold clean line art, dynamic poses, strong contrast, vibrant colors, comic book shading, heroic proportions, detailed costume design",
		quality: "high quality comic art, professional comic illustration, marvel style, dc comics style, masterpiece",
		preset:  "comic-book",
	},
	"realistic": {
		prefix:  "photorealistic, realistic portrait, digital painting",
		details: "natural human proportions, realistic skin textures, detailed facial features, natural lighting, lifelike detail",
		quality: "photorealistic, high resolution, professional portrait, detailed realistic art, masterpiece",
		preset:  "photographic",
	},
}

var genericTemplate = styleTemplate{
	prefix:  "digital art, illustration",
	details: "professional artistic quality, appealing character design, vibrant colors",
	quality: "high quality digital art, professional illustration, masterpiece",
}

var styleAliases = map[string]string{
	"video_game_3d":  "3d",
	"american_comic": "comic",
}

func canonicalStyle(style string) string {
	s := strings.ToLower(strings.TrimSpace(style))
	if alias, ok := styleAliases[s]; ok {
		return alias
	}
	return s
}

// BuildPrompt renders the portrait prompt for req. The expression clause
// comes from the trait catalogue.
func BuildPrompt(req Request, catalog *personality.Catalog) Prompt {
	if catalog == nil {
		catalog = personality.DefaultCatalog()
	}

	tmpl, ok := styleTemplates[canonicalStyle(req.ArtStyle)]
	if !ok {
		tmpl = genericTemplate
	}

	text := fmt.Sprintf("%s, portrait of a %s character, %s height, %s build, %s eyes, %s hair, %s skin, %s, %s, upper body shot, centered composition, soft background, %s",
		tmpl.prefix,
		orDefault(req.Gender, "person"),
		orDefault(req.Height, "average"),
		orDefault(req.Build, "average"),
		orDefault(req.EyeColor, "brown"),
		orDefault(req.HairColor, "brown"),
		orDefault(req.SkinTone, "natural"),
		expressionClause(req.PersonalityTraits, catalog),
		tmpl.details,
		tmpl.quality,
	)

	return Prompt{Text: text, Negative: NegativePrompt, StylePreset: tmpl.preset}
}

func expressionClause(traits []string, catalog *personality.Catalog) string {
	traits = personality.NormalizeTraits(traits)
	if len(traits) == 0 {
		return "friendly and approachable expression"
	}

	shown := traits
	if len(shown) > 3 {
		shown = shown[:3]
	}
	clause := strings.Join(shown, ", ") + " personality"

	if expressions := catalog.Expressions(traits, 2); len(expressions) > 0 {
		return clause + ", " + strings.Join(expressions, ", ")
	}
	return clause + ", expressive face showing " + traits[0] + " traits"
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
