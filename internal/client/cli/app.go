package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/dmitrijs2005/neurostore/internal/client/client"
	"github.com/dmitrijs2005/neurostore/internal/client/config"
	"github.com/dmitrijs2005/neurostore/internal/client/services"
	"github.com/dmitrijs2005/neurostore/internal/filex"
	"github.com/dmitrijs2005/neurostore/internal/logging"
)

// Opener builds the FileService once flags are parsed.
type Opener func(ctx context.Context, cfg *config.Config) (services.FileService, error)

// App is the FileService of a CLI run together with the tracking database
// it owns.
type App struct {
	services.FileService
	repos *client.Repositories
}

func (a *App) Close() error {
	return errors.Join(a.FileService.Close(), a.repos.Close())
}

// logOutput is where --verbose logs go.
var logOutput io.Writer = os.Stderr

// Open connects to the server and opens the tracking database.
func Open(ctx context.Context, cfg *config.Config) (services.FileService, error) {
	var logger logging.Logger = logging.Nop{}
	if cfg.Verbose {
		l, err := logging.New(cfg.LogBackend, logOutput)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	if err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		return nil, err
	}
	repos, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewGRPCClient(cfg.ServerEndpointAddr, cfg.AccessToken)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	fs := services.NewFileService(apiClient, repos.Files, repos.Metadata, cfg.ServerEndpointAddr, cfg.HashAlgorithm, logger)
	return &App{FileService: fs, repos: repos}, nil
}
