package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"listenlink/internal/callsession"
	"listenlink/internal/config"
	"listenlink/internal/coordinator"
	"listenlink/internal/events"
	"listenlink/internal/poller"
	"listenlink/internal/transport"
	"listenlink/internal/tui"
	"listenlink/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "listenlink:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	log, closer, err := logger.OpenFile(cfg.LogFile, cfg.Env)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := transport.NewClient(cfg.APIURL, cfg.Token)
	store := callsession.NewStore()
	bus := events.NewBus(events.WithLogger(log))

	coord := coordinator.New(store, api, api,
		coordinator.WithLogger(log),
		coordinator.WithBus(bus),
		coordinator.WithRingTimeout(cfg.RingTimeout),
		coordinator.WithDeclinedDisplay(cfg.DeclinedDisplay),
	)
	defer coord.Close()

	media := terminalMedia{coord: coord, bus: bus}
	incoming := poller.NewIncoming(api, coord, nil, cfg.IncomingInterval, log)
	outgoing := poller.NewOutgoingStatus(api, media, nil, cfg.OutgoingInterval, log)
	store.Subscribe(outgoing.Watch)
	outgoing.Start(ctx)
	defer outgoing.Stop()

	opts := []tui.AppOption{tui.WithHistory(api), tui.WithEvents(bus)}
	switch cfg.Mode {
	case config.ModeStream:
		router := frameRouter{incoming: incoming, session: coord.Session, outgoing: media}
		stream := transport.NewStream(cfg.APIURL, cfg.Token, log)
		go func() {
			if err := stream.Run(ctx, router.Handle); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("invitation stream stopped", "err", err)
			}
		}()
	default:
		incoming.Start(ctx)
		defer incoming.Stop()
		opts = append(opts, tui.WithVisibility(incoming))
	}

	app := tui.NewApp(ctx, coord, api, opts...)
	store.Subscribe(app.Notify)

	log.Info("client started", "api", cfg.APIURL, "mode", cfg.Mode)
	_, err = tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
