//	@title			Photographer's Panel API
//	@version		1.0
//	@description	Admin panel backend: uploads photos to object storage and manages the gallery.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						panel_session
//	@description				Session cookie set by POST /login.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/config"
	"github.com/fotopanel/admin/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "panel",
		Short: "Photographer's admin panel",
		Long: `Panel serves the photographer's admin page: sign in, drop images
into object storage and manage the gallery of uploaded photos.`,
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCommand(), migrateCommand(), createAdminCommand())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads and validates the configuration and builds the logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, envLoaded := config.Load()

	log, err := logger.New(!cfg.IsProduction())
	if err != nil {
		return nil, nil, err
	}
	if !envLoaded {
		log.Debug("no .env file found, using environment only")
	}
	if err := cfg.Validate(); err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return cfg, log, nil
}
