// Command shopfront is a terminal storefront client: sign in, watch
// notifications arrive and manage the cart.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/nhle/shopfront/internal/api"
	"github.com/nhle/shopfront/internal/app"
	"github.com/nhle/shopfront/internal/credential"
	"github.com/nhle/shopfront/internal/logger"
	"github.com/nhle/shopfront/internal/model"
	"github.com/nhle/shopfront/internal/notify"
	"github.com/nhle/shopfront/internal/session"
	"github.com/nhle/shopfront/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "shopfront:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", model.DefaultConfigPath(), "path to config.yaml")
	baseURL := pflag.String("api", "", "override api.base_url")
	logLevel := pflag.String("log-level", "", "override log.level (debug, info, warn, error)")
	writeConfig := pflag.Bool("write-config", false, "write the effective configuration and exit")
	pflag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *writeConfig {
		return model.SaveConfig(*configPath, cfg)
	}

	log, logFile, err := logger.NewFile(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ring, err := credential.Open(filepath.Join(model.DefaultConfigDir(), "keyring"))
	if err != nil {
		return err
	}
	vault := credential.NewVault(ring)

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
	}
	defer db.Close()

	sender := app.NewSender()
	bridge := notify.NewBridge(sender, cfg.ToastTTL(), log)

	// The 401 hook needs the manager, which needs the client.
	var mgr *session.Manager
	client := api.NewClient(cfg.API.BaseURL, vault,
		api.WithTimeout(cfg.APITimeout()),
		api.WithLogger(log),
		api.WithUnauthorizedHandler(func() { mgr.HandleUnauthorized() }),
	)

	mgr = session.New(client, vault,
		session.WithLogger(log),
		session.WithDelivery(func(s model.Session) notify.Delivery {
			d, mode := session.SelectDelivery(cfg, client, s, log)
			log.Info("notification delivery selected", "mode", mode, "user", s.User.ID)
			sender.Send(app.DeliveryModeMsg{Mode: mode})
			return d
		}, bridge.Deliver),
	)

	root := app.New(app.Deps{
		Client:  client,
		Session: mgr,
		Bridge:  bridge,
		Store:   db,
		Sender:  sender,
		Log:     log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))
	sender.Attach(p)

	log.Info("shopfront starting", "api", cfg.API.BaseURL, "realtime", cfg.RealtimeSupported())
	_, err = p.Run()
	mgr.Close()
	if err != nil {
		return fmt.Errorf("running terminal ui: %w", err)
	}
	return nil
}
