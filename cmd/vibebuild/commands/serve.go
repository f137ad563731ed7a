package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WilliamStanton/vibe-build/internal/action"
	"github.com/WilliamStanton/vibe-build/internal/config"
	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/internal/pipeline"
	"github.com/WilliamStanton/vibe-build/internal/provider"
	"github.com/WilliamStanton/vibe-build/internal/server"
	"github.com/WilliamStanton/vibe-build/internal/session"
	"github.com/WilliamStanton/vibe-build/internal/vision"
)

var (
	servePort    int
	serveWebPort int
	serveHost    string
	serveDir     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vibe-build server",
	Long: `Start the WebSocket listener the game mod connects to, and the HTTP
side channel that serves the image upload page and diagnostics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "WebSocket port (default from config, 8080)")
	serveCmd.Flags().IntVar(&serveWebPort, "web-port", 0, "HTTP side channel port (default from config, 8787)")
	serveCmd.Flags().StringVar(&serveHost, "hostname", "", "Host to bind (default from config, 0.0.0.0)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Directory to load project config from")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir := serveDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if servePort > 0 {
		appConfig.Server.Port = servePort
	}
	if serveWebPort > 0 {
		appConfig.Server.WebPort = serveWebPort
	}
	if serveHost != "" {
		appConfig.Server.WebHost = serveHost
	}
	if logLevel == "" && appConfig.LogLevel != "" {
		logLevel = appConfig.LogLevel
		if err := setupLogging(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := provider.InitializeProviders(ctx, appConfig)
	if err != nil {
		return fmt.Errorf("initialize providers: %w", err)
	}

	catalog, err := action.Load()
	if err != nil {
		return err
	}

	bus := event.NewBus()
	defer bus.Close()

	registry := session.NewRegistry(
		session.WithBus(bus),
		session.WithActionTimeout(appConfig.Action.Timeout()),
	)
	runner := pipeline.NewRunner(providers, catalog, pipeline.ConfigFrom(appConfig), pipeline.WithBus(bus))
	images := vision.NewGenerator(providers, appConfig.ImageModel, appConfig.Pipeline.ImageMaxTokens)

	srvConfig := server.ConfigFrom(appConfig)
	srv := server.New(srvConfig, registry, runner, images, bus)

	logging.Info().
		Str("version", Version).
		Str("model", appConfig.Model).
		Str("imageModel", appConfig.ImageModel).
		Int("actions", catalog.Len()).
		Msg("Starting vibe-build server")
	fmt.Fprintf(cmd.OutOrStdout(), "vibe-build %s\n  game:  ws://%s:%d\n  web:   http://%s:%d\n",
		Version, srvConfig.Host, srvConfig.Port, srvConfig.Host, srvConfig.WebPort)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Server shutdown error")
	}
	for _, info := range registry.List() {
		registry.Destroy(info.ID)
	}

	logging.Info().Msg("Server stopped")
	return nil
}
