package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

func newExtractCommand(a *app) *cobra.Command {
	var dataDir, output string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract MFCC features from a speaker/emotion/*.wav tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDir != "" {
				a.cfg.Paths.DataDir = dataDir
			}
			if output != "" {
				a.cfg.Paths.FeaturesFile = output
			}

			extractor, err := features.NewExtractor(a.cfg.Features)
			if err != nil {
				return err
			}

			ds, err := extractor.ExtractCorpus(cmd.Context(), a.cfg.Paths.DataDir)
			if err != nil {
				return err
			}

			if err := features.SaveDataset(a.cfg.Paths.FeaturesFile, ds); err != nil {
				return err
			}

			logging.Debug("Features saved", logging.Fields{"output": a.cfg.Paths.FeaturesFile})
			fmt.Fprintf(cmd.OutOrStdout(), "Feature extraction complete! Total samples: %d\n", ds.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "dataset root (overrides paths.data_dir)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "features file to write (overrides paths.features_file)")
	return cmd
}
