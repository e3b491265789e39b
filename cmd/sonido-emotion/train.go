package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/artifacts"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/training"
)

func newTrainCommand(a *app) *cobra.Command {
	var featuresFile, modelsDir string
	var epochs int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the CNN on extracted features and save model, scaler and label encoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if featuresFile != "" {
				a.cfg.Paths.FeaturesFile = featuresFile
			}
			if modelsDir != "" {
				a.cfg.Paths.ModelsDir = modelsDir
			}
			if epochs > 0 {
				a.cfg.Training.Epochs = epochs
			}

			ds, err := features.LoadDataset(a.cfg.Paths.FeaturesFile)
			if err != nil {
				return err
			}
			if ds.NumCoefficients != a.cfg.Features.NumCoefficients {
				logging.Warn("Dataset coefficient count differs from feature config", logging.Fields{
					"dataset": ds.NumCoefficients,
					"config":  a.cfg.Features.NumCoefficients,
				})
			}

			res, err := training.Train(cmd.Context(), ds, a.cfg.Training)
			if err != nil {
				return err
			}

			bundle := &artifacts.Bundle{Model: res.Model, Scaler: res.Scaler, Encoder: res.Encoder}
			if err := artifacts.Save(a.cfg.Paths.ModelsDir, bundle); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Test Accuracy: %.4f\n", res.TestAccuracy)
			return nil
		},
	}

	cmd.Flags().StringVarP(&featuresFile, "features", "f", "", "features file to read (overrides paths.features_file)")
	cmd.Flags().StringVar(&modelsDir, "models-dir", "", "directory for the trained artifacts (overrides paths.models_dir)")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "number of epochs (overrides training.epochs)")
	return cmd
}
