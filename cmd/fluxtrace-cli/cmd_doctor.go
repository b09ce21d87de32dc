package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/fluxtrace/client"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, server, readiness and auth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.OutOrStdout())
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor(w io.Writer) error {
	fmt.Fprintln(w, "\nfluxtrace Doctor")
	fmt.Fprintln(w, "================")

	var results []checkResult

	cfgPath, _, cfgErr := loadConfigFile()
	if cfgErr != nil {
		results = append(results, checkResult{
			Name: "Config file", Passed: false,
			Detail: cfgPath,
			Hint:   "Run: fluxtrace init (or set FLUXTRACE_URL)",
		})
	} else {
		results = append(results, checkResult{
			Name: "Config file", Passed: true,
			Detail: fmt.Sprintf("found (%s)", cfgPath),
		})
	}

	// flagURL and flagKey were resolved from flags, env and config.
	results = append(results, checkResult{Name: "Server URL", Passed: true, Detail: flagURL})

	c := client.New(flagURL, client.WithAPIKey(flagKey), client.WithTimeout(5*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	health, err := c.Health(ctx)
	if err != nil {
		results = append(results, checkResult{
			Name: "Server reachable", Passed: false,
			Detail: flagURL,
			Hint:   fmt.Sprintf("Is the fluxtrace server running?\n   Error: %v", err),
		})
	} else {
		results = append(results, checkResult{
			Name: "Server reachable", Passed: true,
			Detail: fmt.Sprintf("v%s, %s graph", health.Version, health.Source),
		})
		results = append(results, doctorCheckReady(ctx, c), doctorCheckAuth(ctx, c))
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, r := range results {
		mark := "[ok]  "
		if !r.Passed {
			mark = "[fail]"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Fprintf(w, "%s %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Fprintf(w, "%s %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Fprintf(w, "   Hint: %s\n", r.Hint)
		}
	}

	fmt.Fprintln(w)
	if !allPassed {
		fmt.Fprintln(w, "Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}
	fmt.Fprintln(w, "All checks passed!")
	return nil
}

func doctorCheckReady(ctx context.Context, c *client.Client) checkResult {
	ready, err := c.Ready(ctx)
	if err != nil {
		return checkResult{
			Name: "Server ready", Passed: false,
			Hint: fmt.Sprintf("Check the database and migrations. Error: %v", err),
		}
	}
	return checkResult{Name: "Server ready", Passed: true, Detail: ready.Status}
}

// doctorCheckAuth traces a key that cannot exist. Any answer other than 401
// means the key was accepted.
func doctorCheckAuth(ctx context.Context, c *client.Client) checkResult {
	_, err := c.Trace.Collect(ctx, "fluxtrace-doctor-probe", client.TraceOptions{TerminalLabel: "Exchange"})

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return checkResult{
			Name: "Authentication", Passed: false,
			Hint: "Set --api-key, FLUXTRACE_API_KEY, or run fluxtrace init",
		}
	}
	if err != nil && !client.IsNotFound(err) {
		return checkResult{
			Name: "Authentication", Passed: false,
			Hint: fmt.Sprintf("Unexpected response. Error: %v", err),
		}
	}

	detail := "valid"
	if flagKey == "" {
		detail = "not required by server"
	}
	return checkResult{Name: "Authentication", Passed: true, Detail: detail}
}
