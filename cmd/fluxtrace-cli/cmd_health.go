package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server liveness and readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			health, err := apiClient.Health(ctx)
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}

			// A not-ready server answers 503; report it rather than fail.
			ready, readyErr := apiClient.Ready(ctx)

			w := cmd.OutOrStdout()
			switch flagFmt {
			case "quiet":
				fmt.Fprintln(w, health.Status)
			case "table":
				rows := [][]string{
					{"status", health.Status},
					{"version", health.Version},
					{"source", health.Source},
					{"database", health.Database},
					{"uptime", (time.Duration(health.UptimeSeconds) * time.Second).String()},
				}
				if ready != nil {
					rows = append(rows, []string{"ready", ready.Status})
					names := make([]string, 0, len(ready.Checks))
					for name := range ready.Checks {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						rows = append(rows, []string{"check." + name, ready.Checks[name]})
					}
				} else {
					rows = append(rows, []string{"ready", "not_ready"})
				}
				formatTable(w, []string{"FIELD", "VALUE"}, rows)
			default:
				return formatJSON(w, map[string]any{"health": health, "ready": ready})
			}

			if readyErr != nil {
				return fmt.Errorf("server not ready: %w", readyErr)
			}
			return nil
		},
	}
}
