package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/inference"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/server"
)

func newServeCommand(a *app) *cobra.Command {
	var modelsDir string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve emotion predictions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelsDir != "" {
				a.cfg.Paths.ModelsDir = modelsDir
			}
			if port > 0 {
				a.cfg.Server.Port = port
			}

			rt, err := inference.Load(a.cfg.Paths.ModelsDir, a.cfg.Features, a.cfg.Server.TempDir)
			if err != nil {
				// no point listening without a model
				logging.Fatal(err, "Model files missing or unreadable", logging.Fields{
					"models_dir": a.cfg.Paths.ModelsDir,
				})
				return err
			}

			srv := server.New(a.cfg.Server, rt)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			logging.Info("Server is shutting down...")

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logging.Error(err, "Server forced to shutdown")
				return err
			}

			logging.Info("Server exited")
			return <-errCh
		},
	}

	cmd.Flags().StringVar(&modelsDir, "models-dir", "", "directory holding the trained artifacts (overrides paths.models_dir)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
