package models

import (
	"fmt"
	"text/tabwriter"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/cozy-creator/medpredict/internal/services/modelfetch"
	"github.com/cozy-creator/medpredict/internal/utils/pathutil"
	"github.com/cozy-creator/medpredict/pkg/logger"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and download classifier models",
}

func init() {
	fetchCmd.Flags().Bool("overwrite", false, "Download again even when a verified file exists")
	Cmd.AddCommand(listCmd, fetchCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured classifiers and their model files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustGetConfig()
		catalog, err := diagnosis.CatalogFromConfig(cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DISEASE\tFILE\tPRESENT\tCLASSES")
		for _, spec := range catalog.List() {
			path := diagnosis.ModelPath(cfg.ModelsDir, spec)
			fmt.Fprintf(w, "%s\t%s\t%t\t%v\n", spec.Disease, path, pathutil.FileExists(path), spec.Classes)
		}

		return w.Flush()
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [disease...]",
	Short: "Download model files from their configured URLs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustGetConfig()
		catalog, err := diagnosis.CatalogFromConfig(cfg)
		if err != nil {
			return err
		}

		specs, err := selectSpecs(catalog, args)
		if err != nil {
			return err
		}

		overwrite, err := cmd.Flags().GetBool("overwrite")
		if err != nil {
			return err
		}

		log, err := logger.InitLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		fetcher := modelfetch.NewFetcher(cfg.ModelsDir,
			modelfetch.WithLogger(log.Named("modelfetch")),
			modelfetch.WithProgressOutput(cmd.OutOrStdout()),
			modelfetch.WithOverwrite(overwrite),
		)

		return fetcher.FetchAll(cmd.Context(), specs)
	},
}

// selectSpecs returns the named specs, or the whole catalog when names is empty.
func selectSpecs(catalog *diagnosis.Catalog, names []string) ([]diagnosis.Spec, error) {
	if len(names) == 0 {
		return catalog.List(), nil
	}

	specs := make([]diagnosis.Spec, 0, len(names))
	for _, name := range names {
		spec, ok := catalog.Get(diagnosis.Disease(name))
		if !ok {
			return nil, fmt.Errorf("%w: %s", diagnosis.ErrUnknownModel, name)
		}
		specs = append(specs, spec)
	}

	return specs, nil
}
