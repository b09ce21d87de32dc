package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/fluxtrace/client"
	"github.com/persistorai/fluxtrace/internal/models"
	"github.com/persistorai/fluxtrace/internal/store"
)

func newImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a YAML or JSON graph document into the server",
		Long: "Validate a graph document locally, then upsert its nodes and edges on a\n" +
			"PostgreSQL-backed server. --dry-run stops after validation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := store.LoadDocument(args[0])
			if err != nil {
				return err
			}
			if err := doc.Validate(); err != nil {
				return fmt.Errorf("invalid graph document: %w", err)
			}

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d edges, valid\n", args[0], len(doc.Nodes), len(doc.Edges))
				return nil
			}

			result, err := apiClient.Graph.Import(context.Background(), toClientDocument(doc))
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			return output(cmd.OutOrStdout(), result, strconv.Itoa(result.Nodes+result.Edges))
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only, do not contact the server")
	return cmd
}

func toClientDocument(doc *models.GraphDocument) *client.GraphDocument {
	out := &client.GraphDocument{
		Nodes: make([]client.GraphNode, len(doc.Nodes)),
		Edges: make([]client.GraphEdge, len(doc.Edges)),
	}
	for i, n := range doc.Nodes {
		out.Nodes[i] = client.GraphNode{ID: n.ID, Key: n.Key, Labels: n.Labels, Properties: n.Properties}
	}
	for i, e := range doc.Edges {
		out.Edges[i] = client.GraphEdge{ID: e.ID, Source: e.Source, Target: e.Target, Amount: e.Amount, Properties: e.Properties}
	}
	return out
}
