package main

import (
	"github.com/spf13/cobra"

	"github.com/alvarorichard/Gostream/pkg/gostream"
)

func newSourcesCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured hoster families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			client, err := gostream.NewClient(*cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), client.Sources())
			}
			_, err = cmd.OutOrStdout().Write([]byte(renderSources(client.Sources()) + "\n"))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
