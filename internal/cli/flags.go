package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/ensembleeval/internal/app"
	"github.com/vk/ensembleeval/internal/client"
)

// appFlags are shared by the run and serve commands.
type appFlags struct {
	manifest        string
	realizations    string
	iter            int
	logFormat       string
	logLevel        string
	healthcheckPort int
	aggregatorAddr  string
}

func (f *appFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.manifest, "manifest", "m", "", "Path to the ensemble manifest (.hcl). May also be given as the first argument.")
	flags.StringVar(&f.realizations, "realizations", "", "Active realizations, e.g. '0-4, 7'. Overrides the manifest.")
	flags.IntVar(&f.iter, "iter", 0, "Iteration number reported with every event.")
	flags.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.IntVar(&f.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	flags.StringVar(&f.aggregatorAddr, "aggregator-addr", app.DefaultAggregatorAddr, "Listen address of the aggregator.")
}

// config builds the app configuration. The manifest may come from the flag
// or the first positional argument.
func (f *appFlags) config(args []string) app.Config {
	path := f.manifest
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	return app.Config{
		ManifestPath:    path,
		Realizations:    f.realizations,
		Iter:            f.iter,
		LogFormat:       strings.ToLower(f.logFormat),
		LogLevel:        strings.ToLower(f.logLevel),
		HealthcheckPort: f.healthcheckPort,
		AggregatorAddr:  f.aggregatorAddr,
	}
}

// clientFlags configure the reporting clients.
type clientFlags struct {
	cfg client.Config
}

func (f *clientFlags) register(cmd *cobra.Command) {
	def := client.DefaultConfig("")
	flags := cmd.Flags()
	flags.IntVar(&f.cfg.MaxRetries, "max-retries", def.MaxRetries, "Extra delivery attempts before a report is given up.")
	flags.IntVar(&f.cfg.TimeoutMultiplier, "timeout-multiplier", def.TimeoutMultiplier, "Growth factor of the wait between retries.")
	flags.DurationVar(&f.cfg.BaseTimeout, "base-timeout", def.BaseTimeout, "Wait before the first retry.")
	flags.DurationVar(&f.cfg.MaxBackoff, "max-backoff", def.MaxBackoff, "Longest wait between retries. 0 disables the cap.")
	flags.DurationVar(&f.cfg.DialTimeout, "dial-timeout", def.DialTimeout, "Timeout of a single connection attempt.")
	flags.DurationVar(&f.cfg.AckTimeout, "ack-timeout", def.AckTimeout, "Timeout waiting for the aggregator to acknowledge a report.")
	flags.StringVar(&f.cfg.Transport, "transport", def.Transport, fmt.Sprintf("Report transport. Options: '%s' or '%s'.", client.TransportWebsocket, client.TransportSocketIO))
	flags.StringVar(&f.cfg.Codec, "codec", def.Codec, "Wire codec. Options: 'json' or 'msgpack'.")
	flags.StringVar(&f.cfg.Namespace, "namespace", def.Namespace, "Socket.io namespace.")
	flags.BoolVar(&f.cfg.InsecureSkipVerify, "insecure", false, "Skip TLS certificate verification.")
}
