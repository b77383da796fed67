package domains

import settings "github.com/inkcloud/go-settings"

// Cloud configures member verification and backups.
func Cloud() Domain {
	return Domain{
		Name:  "cloud",
		Title: "Cloud",
		Defaults: settings.Document{
			"verification": map[string]any{
				"enabled":              false,
				"role_id":              "",
				"channel_id":           "",
				"min_account_age_days": float64(7),
				"require_captcha":      true,
			},
			"backup": map[string]any{
				"enabled":        false,
				"interval_hours": float64(24),
				"retain":         float64(7),
			},
			"members": map[string]any{
				"auto_pull":  false,
				"pull_roles": []any{},
			},
		},
		Fields: settings.FieldTable{
			"verification.enabled":              settings.Bool(),
			"verification.role_id":              settings.Text(),
			"verification.channel_id":           settings.Text(),
			"verification.min_account_age_days": settings.Integer(0, 365),
			"verification.require_captcha":      settings.Bool(),
			"backup.enabled":                    settings.Bool(),
			"backup.interval_hours":             settings.Integer(1, 168),
			"backup.retain":                     settings.Integer(1, 30),
			"members.auto_pull":                 settings.Bool(),
			"members.pull_roles":                settings.IDList(),
		},
		Rules: []settings.Rule{{
			Name:       "verification_role",
			Expression: "!verification.enabled || is_snowflake(verification.role_id)",
			Message:    "verification needs a valid role",
		}},
	}
}
