package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// capabilitiesDoc is the --json output of the capabilities command.
type capabilitiesDoc struct {
	Backend         string               `json:"backend"`
	Version         string               `json:"version"`
	ProtocolVersion string               `json:"protocol_version"`
	Platform        platform.Platform    `json:"platform"`
	Capabilities    backend.Capabilities `json:"capabilities"`
	Config          []configField        `json:"config"`
}

type configField struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Policy string `json:"policy"`
}

func (c *CLI) capabilitiesCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Describe the backend's capabilities and configuration fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := c.describe()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			printCapabilities(cmd.OutOrStdout(), doc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *CLI) describe() capabilitiesDoc {
	info := c.Adapter.Info()
	doc := capabilitiesDoc{
		Backend:         info.Name,
		Version:         info.Version,
		ProtocolVersion: buildinfo.ProtocolVersion,
		Platform:        platform.Current(),
		Capabilities:    info.Capabilities,
	}
	for _, f := range info.Schema {
		doc.Config = append(doc.Config, configField{Name: f.Name, Kind: f.Kind.String(), Policy: f.Policy.String()})
	}
	return doc
}

func printCapabilities(w io.Writer, doc capabilitiesDoc) {
	fmt.Fprintln(w, StyleTitle.Render(doc.Backend)+" "+StyleDim.Render(doc.Version))
	printKeyValue(w, "protocol", doc.ProtocolVersion)
	printKeyValue(w, "platform", string(doc.Platform))
	fmt.Fprintln(w)

	caps := doc.Capabilities
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"metadata", caps.ProvidesMetadata},
		{"build", caps.ProvidesBuild},
		{"editable", caps.Editable},
		{"variants", caps.Variants},
		{"cancel", caps.Cancel},
	} {
		printCheck(w, c.ok, c.name)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, StyleTitle.Render("config"))
	for _, f := range doc.Config {
		printDetail(w, "%-22s %-12s %s", f.Name, f.Kind, f.Policy)
	}
}
