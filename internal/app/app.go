package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tiagowhuber/ConsultasSII/internal/config"
	"github.com/tiagowhuber/ConsultasSII/internal/ledger"
	"github.com/tiagowhuber/ConsultasSII/internal/live"
	"github.com/tiagowhuber/ConsultasSII/internal/notas"
	"github.com/tiagowhuber/ConsultasSII/internal/prefs"
	"github.com/tiagowhuber/ConsultasSII/internal/sii"
	"github.com/tiagowhuber/ConsultasSII/internal/ui"
)

// Options configure the dashboard application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/librocompras/prefs.toml
	PollEvery  int    // seconds; zero uses the config value
	Rut        string // overrides config
	Mes        int    // overrides config
	Anio       int    // overrides config
}

// Run boots the dashboard TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Rut != "" {
		cfg.Rut = opts.Rut
	}
	if opts.Mes > 0 {
		cfg.Mes = opts.Mes
	}
	if opts.Anio > 0 {
		cfg.Anio = opts.Anio
	}
	if opts.PollEvery > 0 {
		cfg.PollSeconds = opts.PollEvery
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	client, err := sii.NewClient(cfg.APIURL)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	ledgerStore := ledger.NewStore(client, logger)
	notaStore := notas.NewStore(client, logger,
		notas.WithApplied(ledgerStore.ApplyNota),
		notas.WithRemoved(ledgerStore.RemoveNota),
	)

	// The permission prompt surfaces as a modal in the UI; the center blocks
	// on the reply while the pending notification waits.
	permissionRequests := make(chan chan live.Permission, 1)
	center := live.NewCenter(logger, promptVia(permissionRequests),
		live.WithPermission(permissionFromPrefs(userPrefs.Notifications)))

	channel := live.NewChannel(cfg.PushURL, logger, func(ev sii.NewRecordEvent) {
		center.Notify(ctx, ev)
	})

	// Cold backend wake probe; a failure only delays the first load.
	if err := client.WakeUp(ctx); err != nil {
		logger.Warn().Err(err).Msg("wake probe failed")
	}

	if err := channel.Connect(ctx); err != nil {
		logger.Warn().Err(err).Msg("push channel unavailable")
	}

	StartPoller(ctx, ledgerStore, time.Duration(cfg.PollSeconds)*time.Second, logger)

	// Populate the stores in the background so the UI can show its loading
	// state immediately; a cold backend can take minutes to answer.
	go func() {
		if err := ledgerStore.LoadAll(ctx, cfg.Rut, cfg.Mes, cfg.Anio); err != nil {
			logger.Error().Err(err).Msg("initial load failed")
		}
		if err := notaStore.LoadAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("nota preload failed")
		}
	}()

	uiOpts := ui.Options{
		Context:            ctx,
		Config:             cfg,
		Prefs:              userPrefs,
		PrefsPath:          opts.PrefsPath,
		Ledger:             ledgerStore,
		Notas:              notaStore,
		Center:             center,
		Channel:            channel,
		PermissionRequests: permissionRequests,
		Log:                logger,
	}
	runErr := ui.Run(uiOpts)

	channel.Disconnect()
	center.Close()
	notaStore.Wait()
	return runErr
}

// promptVia bridges the notification center's blocking prompt to the UI:
// the request carries a reply channel the UI answers from its modal.
func promptVia(requests chan chan live.Permission) live.PromptFunc {
	return func(ctx context.Context) (live.Permission, error) {
		reply := make(chan live.Permission, 1)
		select {
		case requests <- reply:
		case <-ctx.Done():
			return live.PermissionDefault, ctx.Err()
		}
		select {
		case p := <-reply:
			return p, nil
		case <-ctx.Done():
			return live.PermissionDefault, ctx.Err()
		}
	}
}

func permissionFromPrefs(value string) live.Permission {
	switch value {
	case "granted":
		return live.PermissionGranted
	case "denied":
		return live.PermissionDenied
	default:
		return live.PermissionDefault
	}
}
