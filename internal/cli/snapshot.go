package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vk/ensembleeval/internal/aggregator"
	"github.com/vk/ensembleeval/internal/snapshot"
)

func newSnapshotCommand() *cobra.Command {
	var (
		url     string
		iter    int
		output  string
		timeout time.Duration
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the current snapshot held by an aggregator",
		Long: `Print the current snapshot held by an aggregator.

With --watch the command keeps the connection open and prints every update
until interrupted: one JSON object per line, or one YAML document per event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				return usageError(errors.New("--url is required"))
			}
			if err := checkOutput(output, false); err != nil {
				return usageError(err)
			}
			if watch {
				return watchSnapshot(cmd, output, url, iter, timeout)
			}
			snap, err := aggregator.FetchSnapshot(cmd.Context(), &http.Client{Timeout: timeout}, url, iter)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), output, snap)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Base URL of the aggregator, e.g. http://localhost:8080.")
	cmd.Flags().IntVar(&iter, "iter", 0, "Iteration to read.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. Options: 'json' or 'yaml'.")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP request timeout.")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stream updates after the snapshot until interrupted.")
	return cmd
}

func checkOutput(format string, allowEmpty bool) error {
	switch format {
	case "json", "yaml":
		return nil
	case "":
		if allowEmpty {
			return nil
		}
	}
	return fmt.Errorf("invalid output %q: must be 'json' or 'yaml'", format)
}

func watchSnapshot(cmd *cobra.Command, format, url string, iter int, timeout time.Duration) error {
	w := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(w)
		return aggregator.Watch(cmd.Context(), url, iter, timeout, func(ev aggregator.WatchEvent) error {
			return enc.Encode(ev)
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err := aggregator.Watch(cmd.Context(), url, iter, timeout, func(ev aggregator.WatchEvent) error {
		doc, err := asYAMLDoc(ev)
		if err != nil {
			return err
		}
		return enc.Encode(doc)
	})
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	return err
}

// asYAMLDoc round-trips v through JSON so YAML output keeps the JSON field
// names.
func asYAMLDoc(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("converting snapshot to yaml: %w", err)
	}
	return doc, nil
}

// writeSnapshot prints snap as indented JSON or as YAML with the JSON field
// names.
func writeSnapshot(w io.Writer, format string, snap *snapshot.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	doc, err := asYAMLDoc(snap)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
