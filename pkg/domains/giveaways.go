package domains

import settings "github.com/inkcloud/go-settings"

// Giveaways configures a giveaway entry.
func Giveaways() Domain {
	return Domain{
		Name:  "giveaways",
		Title: "Giveaways",
		Defaults: settings.Document{
			"title":             "Giveaway",
			"prize":             "",
			"winners":           float64(1),
			"duration_minutes":  float64(1440),
			"channel_id":        "",
			"required_roles":    []any{},
			"blacklisted_roles": []any{},
			"mention_everyone":  false,
			"embed": map[string]any{
				"color":     "#5865F2",
				"image_url": "",
			},
		},
		Fields: settings.FieldTable{
			"title":             settings.RequiredText(),
			"prize":             settings.Text(),
			"winners":           settings.Integer(1, 50),
			"duration_minutes":  settings.Integer(1, 43200),
			"channel_id":        settings.Text(),
			"required_roles":    settings.IDList(),
			"blacklisted_roles": settings.IDList(),
			"mention_everyone":  settings.Bool(),
			"embed.color":       settings.HexColor(),
			"embed.image_url":   settings.Text(),
		},
		Rules: []settings.Rule{{
			Name:       "role_overlap",
			Expression: "none(required_roles, # in blacklisted_roles)",
			Message:    "a role cannot be both required and blacklisted",
		}},
	}
}
