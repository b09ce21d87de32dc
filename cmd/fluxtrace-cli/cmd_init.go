package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/fluxtrace/client"
)

func newInitCmd() *cobra.Command {
	var (
		initURL    string
		initAPIKey string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up fluxtrace CLI configuration",
		Long:  "Interactive setup wizard that creates ~/.fluxtrace/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			nonInteractive := initURL != "" || initAPIKey != ""
			return runInit(cmd.OutOrStdout(), os.Stdin, initURL, initAPIKey, nonInteractive)
		},
	}

	cmd.Flags().StringVar(&initURL, "url", "", "Server URL (non-interactive mode)")
	cmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (non-interactive mode)")
	return cmd
}

func runInit(w io.Writer, in io.Reader, url, apiKey string, nonInteractive bool) error {
	if !nonInteractive {
		fmt.Fprintln(w, "\n  fluxtrace Setup")
		fmt.Fprintln(w, "  ---------------")
		fmt.Fprintln(w)

		reader := bufio.NewReader(in)

		fmt.Fprintf(w, "  Server URL [%s]: ", defaultURL)
		line, _ := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			url = line
		}

		fmt.Fprint(w, "  API Key (empty if the server has none): ")
		keyLine, _ := reader.ReadString('\n')
		apiKey = strings.TrimSpace(keyLine)
	}

	if url == "" {
		url = defaultURL
	}

	if !nonInteractive {
		fmt.Fprint(w, "\n  Testing connection... ")
	}

	ver, err := testConnection(url, apiKey)
	if err != nil {
		if !nonInteractive {
			fmt.Fprintln(w, "failed")
		}
		return fmt.Errorf("connection failed: %w", err)
	}

	if !nonInteractive {
		fmt.Fprintf(w, "connected (v%s)\n", ver)
	}

	cfgPath, err := writeConfig(url, apiKey)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if nonInteractive {
		fmt.Fprintf(w, "Config saved to %s\n", cfgPath)
	} else {
		fmt.Fprintf(w, "\n  Config saved to %s\n", cfgPath)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Next steps:")
		fmt.Fprintln(w, "    fluxtrace doctor                                  # Full diagnostic check")
		fmt.Fprintln(w, "    fluxtrace trace <key> --terminal-label Exchange   # Run a trace")
		fmt.Fprintln(w, "    fluxtrace --help                                  # See all commands")
		fmt.Fprintln(w)
	}

	return nil
}

func testConnection(url, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.New(url, client.WithAPIKey(apiKey)).Health(ctx)
	if err != nil {
		return "", err
	}
	if health.Version == "" {
		return "unknown", nil
	}
	return health.Version, nil
}
