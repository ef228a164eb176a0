package modelscmder

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/papercomputeco/groqchat/pkg/llm"
)

const modelsLongDesc string = `List the models groqchat can chat with.

The default model is marked with "*". Context is the largest token budget
the model accepts.

Examples:
  groqchat models
  groqchat models -o json
  groqchat models -o yaml`

const modelsShortDesc string = "List available models"

type modelsCommander struct {
	output string
}

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.output, "output", "o", "table", "Output format: table, json or yaml")

	return cmd
}

func (c *modelsCommander) run(cmd *cobra.Command) error {
	catalog := llm.Catalog()

	switch c.output {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(catalog)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tCONTEXT\tDEVELOPER")
	for _, m := range catalog {
		marker := ""
		if m.ID == llm.DefaultModelID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", marker, m.ID, m.DisplayName, m.MaxContextTokens, m.Developer)
	}
	return w.Flush()
}
