package domains

import settings "github.com/inkcloud/go-settings"

var protectionActions = []string{"delete", "warn", "timeout", "kick", "ban"}

// Protection returns one domain per moderation section.
func Protection() []Domain {
	return []Domain{
		protectionSection("antiraid", "Anti-raid", settings.Document{
			"join_threshold": float64(10),
			"window_seconds": float64(10),
			"action":         "kick",
			"lockdown":       false,
		}, settings.FieldTable{
			"join_threshold": settings.Integer(2, 100),
			"window_seconds": settings.Integer(1, 300),
			"lockdown":       settings.Bool(),
		}),
		protectionSection("antispam", "Anti-spam", settings.Document{
			"max_messages":     float64(5),
			"window_seconds":   float64(5),
			"action":           "timeout",
			"timeout_minutes":  float64(10),
			"ignored_channels": []any{},
		}, settings.FieldTable{
			"max_messages":     settings.Integer(2, 50),
			"window_seconds":   settings.Integer(1, 60),
			"timeout_minutes":  settings.Integer(1, 40320),
			"ignored_channels": settings.IDList(),
		}),
		protectionSection("antilink", "Anti-link", settings.Document{
			"action":          "delete",
			"allow_invites":   false,
			"allowed_domains": []any{},
		}, settings.FieldTable{
			"allow_invites":   settings.Bool(),
			"allowed_domains": settings.IDList(),
		}),
		protectionSection("antibot", "Anti-bot", settings.Document{
			"action":         "kick",
			"allow_verified": true,
		}, settings.FieldTable{
			"allow_verified": settings.Bool(),
		}),
	}
}

// protectionSection adds the keys every section shares.
func protectionSection(section, title string, defaults settings.Document, fields settings.FieldTable) Domain {
	defaults["enabled"] = false
	defaults["log_channel"] = ""
	defaults["whitelist_roles"] = []any{}
	fields["enabled"] = settings.Bool()
	fields["log_channel"] = settings.Text()
	fields["whitelist_roles"] = settings.IDList()
	fields["action"] = settings.Enum(protectionActions...)
	return Domain{
		Name:     "protection." + section,
		Title:    title,
		Defaults: defaults,
		Fields:   fields,
	}
}
