package main

import (
	"context"
	"iter"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/fluxtrace/client"
	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
	"github.com/persistorai/fluxtrace/internal/service"
	"github.com/persistorai/fluxtrace/internal/store"
)

type traceFlags struct {
	minContribution float64
	terminalLabel   string
	category        string
	emit            string
	maxDepth        int
	limit           int
	graphFile       string
}

func (f *traceFlags) options() client.TraceOptions {
	return client.TraceOptions{
		MinContribution: f.minContribution,
		TerminalLabel:   f.terminalLabel,
		Category:        f.category,
		Emit:            f.emit,
		MaxDepth:        f.maxDepth,
		MaxResults:      f.limit,
	}
}

func (f *traceFlags) request(key string) models.TraceRequest {
	return models.TraceRequest{
		StartKey:        key,
		Category:        f.category,
		MinContribution: f.minContribution,
		TerminalLabel:   f.terminalLabel,
		Emit:            models.EmitMode(f.emit),
		MaxDepth:        f.maxDepth,
		MaxResults:      f.limit,
	}
}

func newTraceCmd() *cobra.Command {
	var f traceFlags
	cmd := &cobra.Command{
		Use:   "trace <key>",
		Short: "Trace where the value reaching a node came from",
		Long: "Walk incoming transfers from the node with the given key, reporting every\n" +
			"source whose share of the node's inflow is at least --min-contribution.\n" +
			"Nodes carrying --terminal-label are reported and not walked further.\n" +
			"With --graph the trace runs locally on a YAML or JSON graph file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			var hits iter.Seq2[client.TraceHit, error]
			if f.graphFile != "" {
				hits = localTrace(ctx, args[0], &f, stderrLogger())
			} else {
				hits = apiClient.Trace.Stream(ctx, args[0], f.options())
			}
			return printHits(cmd.OutOrStdout(), flagFmt, hits)
		},
	}
	cmd.Flags().Float64Var(&f.minContribution, "min-contribution", 0, "Minimum share of the start node's inflow to follow (0 follows everything)")
	cmd.Flags().StringVar(&f.terminalLabel, "terminal-label", "", "Label that marks a node as terminal (required)")
	cmd.Flags().StringVar(&f.category, "category", "", "Label the start key is looked up under (default Address)")
	cmd.Flags().StringVar(&f.emit, "emit", "", "Which nodes to report: all|terminal")
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", 0, "Maximum path length (0 uses the server limit)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum number of hits (0 uses the server limit)")
	cmd.Flags().StringVar(&f.graphFile, "graph", "", "Trace a local graph file instead of the server")
	_ = cmd.MarkFlagRequired("terminal-label")
	return cmd
}

func stderrLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	return log
}

// localTrace runs the trace in-process on a MemoryGraph built from
// f.graphFile. Loading and lookup errors are yielded like server errors.
func localTrace(ctx context.Context, key string, f *traceFlags, log *logrus.Logger) iter.Seq2[client.TraceHit, error] {
	return func(yield func(client.TraceHit, error) bool) {
		doc, err := store.LoadDocument(f.graphFile)
		if err != nil {
			yield(client.TraceHit{}, err)
			return
		}

		g, err := store.NewMemoryGraph(doc)
		if err != nil {
			yield(client.TraceHit{}, err)
			return
		}

		traces := service.NewTraceService(service.MemorySnapshots(g), service.TraceLimits{
			Category: flux.DefaultCategory,
			MaxDepth: models.MaxTraceDepth,
		}, log)

		stream, err := traces.Trace(ctx, f.request(key))
		if err != nil {
			yield(client.TraceHit{}, err)
			return
		}
		defer stream.Close()

		for hit, err := range stream.Hits() {
			if err != nil {
				yield(client.TraceHit{}, err)
				return
			}
			if !yield(toClientHit(hit), nil) {
				return
			}
		}
	}
}

func toClientHit(h models.TraceHit) client.TraceHit {
	return client.TraceHit{
		Node: client.Node{
			ID:         h.Node.ID,
			Key:        h.Node.Key,
			Labels:     h.Node.Labels,
			Properties: h.Node.Properties,
		},
		Contribution: h.Contribution,
		Influx:       h.Influx,
		Depth:        h.Depth,
		Terminal:     h.Terminal,
		Path:         h.Path,
	}
}
