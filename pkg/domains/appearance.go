package domains

import settings "github.com/inkcloud/go-settings"

// Appearance configures the bot presence and embed styling.
func Appearance() Domain {
	return Domain{
		Name:  "appearance",
		Title: "Appearance",
		Defaults: settings.Document{
			"nickname": "",
			"status": map[string]any{
				"type": "online",
			},
			"activity": map[string]any{
				"type": "playing",
				"text": "",
				"url":  "",
			},
			"embed": map[string]any{
				"color":         "#5865F2",
				"footer":        "",
				"thumbnail_url": "",
			},
		},
		Fields: settings.FieldTable{
			"nickname":            settings.Text(),
			"status.type":         settings.Enum("online", "idle", "dnd", "invisible"),
			"activity.type":       settings.Enum("playing", "streaming", "listening", "watching", "competing", "custom"),
			"activity.text":       settings.Text(),
			"activity.url":        settings.Text(),
			"embed.color":         settings.HexColor(),
			"embed.footer":        settings.Text(),
			"embed.thumbnail_url": settings.Text(),
		},
		Rules: []settings.Rule{{
			Name:       "streaming_url",
			Expression: `activity.type != "streaming" || is_url(activity.url)`,
			Message:    "streaming activity needs a valid url",
		}},
	}
}
