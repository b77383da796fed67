package domains

import settings "github.com/inkcloud/go-settings"

// Payments configures the checkout gateways. At most one gateway is enabled.
func Payments() Domain {
	return Domain{
		Name:  "payments",
		Title: "Payments",
		Defaults: settings.Document{
			"gateways": map[string]any{
				"mercadopago": map[string]any{
					"enabled":      false,
					"access_token": "",
					"public_key":   "",
				},
				"stripe": map[string]any{
					"enabled":         false,
					"secret_key":      "",
					"publishable_key": "",
				},
				"pix": map[string]any{
					"enabled":     false,
					"key":         "",
					"key_type":    "email",
					"holder_name": "",
				},
			},
			"checkout": map[string]any{
				"currency":                 "brl",
				"order_expiration_minutes": float64(30),
				"auto_approve":             false,
			},
		},
		Fields: settings.FieldTable{
			"gateways.mercadopago.enabled":      settings.Bool(),
			"gateways.mercadopago.access_token": settings.Text(),
			"gateways.mercadopago.public_key":   settings.Text(),
			"gateways.stripe.enabled":           settings.Bool(),
			"gateways.stripe.secret_key":        settings.Text(),
			"gateways.stripe.publishable_key":   settings.Text(),
			"gateways.pix.enabled":              settings.Bool(),
			"gateways.pix.key":                  settings.Text(),
			"gateways.pix.key_type":             settings.Enum("cpf", "cnpj", "email", "phone", "random"),
			"gateways.pix.holder_name":          settings.Text(),
			"checkout.currency":                 settings.Enum("brl", "usd", "eur"),
			"checkout.order_expiration_minutes": settings.Integer(5, 1440),
			"checkout.auto_approve":             settings.Bool(),
		},
		Rules: []settings.Rule{{
			Name:       "single_gateway",
			Engine:     settings.EngineCEL,
			Expression: "size(gateways.filter(k, gateways[k].enabled == true)) <= 1",
			Message:    "only one payment gateway can be enabled",
		}},
		Exclusive: []string{"gateways"},
	}
}
