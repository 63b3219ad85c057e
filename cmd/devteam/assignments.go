package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Strob0t/devteam/internal/adapter/litellm"
	"github.com/Strob0t/devteam/internal/service"
)

func assignmentsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Inspect agent model assignments",
	}

	var file string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the effective assignment table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := g.registry(file)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tPRIMARY\tFALLBACKS\tSPECIALIZED")
			for _, a := range reg.List() {
				fallbacks := ""
				for i, f := range a.SortedFallbacks() {
					if i > 0 {
						fallbacks += ", "
					}
					fallbacks += f.Provider + "/" + f.Model
				}
				fmt.Fprintf(tw, "%s\t%s/%s\t%s\t%d\n", a.AgentType, a.PrimaryProvider, a.PrimaryModel, fallbacks, len(a.SpecializedConfigs))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&file, "file", "", "Override file to apply (defaults to assignments.file)")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "check FILE",
		Short: "Validate an assignment override file without applying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := g.registry("")
			if err != nil {
				return err
			}
			n, err := reg.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d assignments ok\n", args[0], n)
			return nil
		},
	})
	return cmd
}

// registry builds an assignment registry validated against the configured
// provider list, without any network access.
func (g *globals) registry(file string) (*service.AssignmentRegistry, error) {
	cfg, _, err := g.setup(true)
	if err != nil {
		return nil, err
	}
	client := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.ChatTimeout)
	reg := service.NewAssignmentRegistry(litellm.NewCatalog(client, cfg.LiteLLM.Providers, nil, 0))
	reg.Initialize()

	if file == "" {
		file = cfg.Assignments.File
	}
	if file != "" {
		if _, err := reg.LoadFile(file); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
