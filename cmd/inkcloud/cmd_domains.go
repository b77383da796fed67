package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/pkg/api"
	"github.com/inkcloud/go-settings/pkg/domains"
	"github.com/inkcloud/go-settings/schema/openapi"
)

func (a *app) domainsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "List settings domains and their editable fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			infos := make([]api.DomainInfo, 0)
			for _, d := range domains.All() {
				infos = append(infos, api.DomainInfo{Name: d.Name, Title: d.Title, Fields: settings.Describe(d.Defaults, d.Fields)})
			}
			if asJSON {
				return printJSON(out, infos)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTITLE\tFIELDS")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", info.Name, info.Title, len(info.Fields))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print field descriptors as JSON")
	return cmd
}

func (a *app) openapiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI description of the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := openapi.NewGenerator().Generate(domains.All())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}
