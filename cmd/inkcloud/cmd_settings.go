package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/layering"
)

func (a *app) settingsCmd() *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and edit a tenant's settings documents",
	}
	cmd.PersistentFlags().StringVarP(&tenant, "tenant", "t", "", "tenant (guild) id")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	var path string
	get := &cobra.Command{
		Use:   "get <domain>",
		Short: "Print the effective document, or one value with --path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.Context(), args[0], tenant, func(s *session) error {
				doc := s.controller.Document()
				if path == "" {
					return printJSON(cmd.OutOrStdout(), doc)
				}
				value, ok := layering.Lookup(doc, path)
				if !ok {
					return fmt.Errorf("%w: %s", settings.ErrUnknownPath, path)
				}
				return printJSON(cmd.OutOrStdout(), value)
			})
		},
	}
	get.Flags().StringVar(&path, "path", "", "dotted path to print")

	set := &cobra.Command{
		Use:   "set <domain> <path> <value>",
		Short: "Validate and persist one value",
		Long: `Validates value against the domain field table and persists it.
Values that parse as JSON (numbers, booleans, arrays) are used as such;
anything else is taken as a string.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.Context(), args[0], tenant, func(s *session) error {
				if err := s.controller.Set(args[1], parseValue(args[2])); err != nil {
					return err
				}
				if err := s.controller.Save(cmd.Context()); err != nil {
					return err
				}
				value, _ := layering.Lookup(s.controller.Document(), args[1])
				return printJSON(cmd.OutOrStdout(), value)
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset <domain>",
		Short: "Restore the domain defaults and persist them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.Context(), args[0], tenant, func(s *session) error {
				if err := s.controller.ResetToDefault(); err != nil {
					return err
				}
				if err := s.controller.Save(cmd.Context()); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s.controller.Document())
			})
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <domain> <group> <id>",
		Short: "Toggle an entry of an exclusive group, disabling its siblings",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.Context(), args[0], tenant, func(s *session) error {
				if err := s.controller.ToggleExclusive(cmd.Context(), args[1], args[2], s.collab); err != nil {
					return err
				}
				value, _ := layering.Lookup(s.controller.Document(), args[1])
				return printJSON(cmd.OutOrStdout(), value)
			})
		},
	}

	trace := &cobra.Command{
		Use:   "trace <domain> <path>",
		Short: "Show which layer the value at path comes from",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withController(cmd.Context(), args[0], tenant, func(s *session) error {
				return printJSON(cmd.OutOrStdout(), s.controller.Trace(args[1]))
			})
		},
	}

	var engine string
	eval := &cobra.Command{
		Use:   "eval <domain> <expression>",
		Short: "Evaluate a rule expression against the effective document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if engine == "" {
				engine = a.cfg.Settings.RulesEngine
			}
			return a.withController(cmd.Context(), args[0], tenant, func(s *session) error {
				evaluator := s.engines[engine]
				if evaluator == nil {
					return fmt.Errorf("rules engine %q unavailable", engine)
				}
				result, err := evaluator.Evaluate(settings.RuleContext{
					Document: s.controller.Document(),
					Domain:   args[0],
					Tenant:   tenant,
				}, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	eval.Flags().StringVar(&engine, "engine", "", "expr, cel or js (defaults to settings.rules_engine)")

	cmd.AddCommand(get, set, reset, toggle, trace, eval)
	return cmd
}

// session is a loaded controller for one domain and tenant.
type session struct {
	controller *settings.Controller
	collab     collaborator
	engines    settings.Engines
}

func (a *app) withController(ctx context.Context, domain, tenant string, fn func(*session) error) error {
	d, err := lookupDomain(domain)
	if err != nil {
		return err
	}
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return settings.ErrNoTenant
	}
	b, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	collab := b.collaborator(d)
	controller := d.NewController(collab,
		settings.WithEngines(b.engines),
		settings.WithLogger(a.logger),
		settings.WithDebounce(a.cfg.Settings.Debounce),
		settings.WithSuccessReset(a.cfg.Settings.SuccessReset),
		settings.WithActivity(b.emitter(a)),
		settings.WithActor(a.actor),
	)
	defer controller.Close()

	if err := controller.Load(ctx, tenant); err != nil {
		return err
	}
	return fn(&session{controller: controller, collab: collab, engines: b.engines})
}

// parseValue reads raw as JSON when it parses, and as a plain string
// otherwise.
func parseValue(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value
	}
	return raw
}
