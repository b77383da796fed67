package domains

import settings "github.com/inkcloud/go-settings"

// StorePreferences configures store behaviour.
func StorePreferences() Domain {
	return Domain{
		Name:  "store.preferences",
		Title: "Store preferences",
		Defaults: settings.Document{
			"currency":            "brl",
			"show_stock":          true,
			"low_stock_threshold": float64(5),
			"notify_channel_id":   "",
			"staff_roles":         []any{},
			"dm_buyer":            true,
		},
		Fields: settings.FieldTable{
			"currency":            settings.Enum("brl", "usd", "eur"),
			"show_stock":          settings.Bool(),
			"low_stock_threshold": settings.Integer(0, 10000),
			"notify_channel_id":   settings.Text(),
			"staff_roles":         settings.IDList(),
			"dm_buyer":            settings.Bool(),
		},
	}
}

// StoreCustomization configures the storefront look.
func StoreCustomization() Domain {
	return Domain{
		Name:  "store.customization",
		Title: "Store customization",
		Defaults: settings.Document{
			"primary_color":   "#7C3AED",
			"secondary_color": "#111827",
			"layout":          "grid",
			"banner_url":      "",
			"logo_url":        "",
			"footer_text":     "",
		},
		Fields: settings.FieldTable{
			"primary_color":   settings.HexColor(),
			"secondary_color": settings.HexColor(),
			"layout":          settings.Enum("grid", "list", "compact"),
			"banner_url":      settings.Text(),
			"logo_url":        settings.Text(),
			"footer_text":     settings.Text(),
		},
	}
}

// Saldo configures the store balance (wallet) feature.
func Saldo() Domain {
	return Domain{
		Name:  "saldo",
		Title: "Balance",
		Defaults: settings.Document{
			"enabled":       false,
			"min_deposit":   float64(5),
			"max_deposit":   float64(1000),
			"bonus_percent": float64(0),
		},
		Fields: settings.FieldTable{
			"enabled":       settings.Bool(),
			"min_deposit":   settings.Number(1, 100000),
			"max_deposit":   settings.Number(1, 100000),
			"bonus_percent": settings.Number(0, 100),
		},
		Rules: []settings.Rule{{
			Name:       "deposit_range",
			Expression: "min_deposit <= max_deposit",
			Message:    "minimum deposit cannot exceed maximum deposit",
		}},
	}
}

// Cashback configures purchase cashback credited to the balance.
func Cashback() Domain {
	return Domain{
		Name:  "cashback",
		Title: "Cashback",
		Defaults: settings.Document{
			"enabled":        false,
			"percent":        float64(5),
			"max_per_order":  float64(50),
			"expires_days":   float64(30),
			"eligible_roles": []any{},
		},
		Fields: settings.FieldTable{
			"enabled":        settings.Bool(),
			"percent":        settings.Number(0, 100),
			"max_per_order":  settings.Number(0, 100000),
			"expires_days":   settings.Integer(0, 365),
			"eligible_roles": settings.IDList(),
		},
	}
}
