package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/attribution-cli/internal/attribution"
)

var policyFile string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and validate the confidence policy",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a policy YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := policyFile
		if path == "" {
			path = cfg.Attribution.PolicyFile
		}
		if path == "" {
			return eris.New("policy validate: --file or attribution.policy_file is required")
		}

		p, err := attribution.LoadPolicy(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "policy %s is valid\n", path)
		return printPolicy(cmd.OutOrStdout(), p)
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPolicy()
		if err != nil {
			return err
		}
		return printPolicy(cmd.OutOrStdout(), p)
	},
}

func printPolicy(w io.Writer, p attribution.Policy) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]attribution.Policy{"policy": p}); err != nil {
		return eris.Wrap(err, "encode policy")
	}
	return enc.Close()
}

func init() {
	policyValidateCmd.Flags().StringVar(&policyFile, "file", "", "policy YAML path (default attribution.policy_file)")
	policyCmd.AddCommand(policyValidateCmd, policyShowCmd)
	rootCmd.AddCommand(policyCmd)
}
