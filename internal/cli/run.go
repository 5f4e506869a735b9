package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vk/ensembleeval/internal/app"
	"github.com/vk/ensembleeval/internal/rangestr"
)

func newRunCommand(appOpts []app.Option) *cobra.Command {
	var (
		af                appFlags
		cf                clientFlags
		reportURL         string
		disableMonitoring bool
		maxRunning        int
		output            string
	)

	cmd := &cobra.Command{
		Use:   "run [MANIFEST]",
		Short: "Evaluate the ensemble described by a manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output, true); err != nil {
				return usageError(err)
			}
			raw := af.config(args)
			raw.ReportURL = reportURL
			raw.DisableMonitoring = disableMonitoring
			raw.MaxRunning = maxRunning
			raw.Client = cf.cfg

			cfg, err := app.NewConfig(raw)
			if err != nil {
				return usageError(err)
			}

			a := app.NewApp(cmd.ErrOrStderr(), cfg, appOpts...)
			result, runErr := a.Run(cmd.Context())
			if result != nil {
				out := cmd.OutOrStdout()
				size := len(result.Succeeded) + len(result.Failed)
				fmt.Fprintf(out, "iteration %d: %d of %d realizations succeeded\n", result.Iter, len(result.Succeeded), size)
				if len(result.Failed) > 0 {
					fmt.Fprintf(out, "failed: %s\n", rangestr.Format(maskOf(result.Failed)))
				}
				if output != "" && result.Snapshot != nil {
					if err := writeSnapshot(out, output, result.Snapshot); err != nil {
						return err
					}
				}
			}
			return runErr
		},
	}
	af.register(cmd)
	cf.register(cmd)
	cmd.Flags().StringVar(&reportURL, "report-url", "", "Report to an external aggregator instead of starting one.")
	cmd.Flags().BoolVar(&disableMonitoring, "disable-monitoring", false, "Run without reporting progress.")
	cmd.Flags().IntVar(&maxRunning, "max-running", 0, "Maximum concurrently running realizations. 0 uses the manifest.")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Print the final snapshot. Options: 'json' or 'yaml'.")
	return cmd
}

func newServeCommand(appOpts []app.Option) *cobra.Command {
	var af appFlags

	cmd := &cobra.Command{
		Use:   "serve [MANIFEST]",
		Short: "Run a standalone aggregator for the manifest's ensemble",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := af.config(args)
			raw.DisableMonitoring = true
			cfg, err := app.NewConfig(raw)
			if err != nil {
				return usageError(err)
			}
			return app.NewApp(cmd.ErrOrStderr(), cfg, appOpts...).Serve(cmd.Context())
		},
	}
	af.register(cmd)
	return cmd
}

// maskOf turns a list of realization indices into a mask.
func maskOf(iens []int) []bool {
	size := 0
	for _, i := range iens {
		if i+1 > size {
			size = i + 1
		}
	}
	mask := make([]bool, size)
	for _, i := range iens {
		mask[i] = true
	}
	return mask
}
