package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/griddash/griddash/pkg/common"
	"github.com/griddash/griddash/pkg/dispatcher"
	"github.com/griddash/griddash/pkg/inverter"
	"github.com/griddash/griddash/pkg/log"
	"github.com/griddash/griddash/pkg/metrics"
	"github.com/griddash/griddash/pkg/planfile"
	"github.com/griddash/griddash/pkg/server"
	"github.com/griddash/griddash/pkg/tariff"
	"github.com/griddash/griddash/pkg/timeutil"
	"github.com/griddash/griddash/pkg/weather"

	"github.com/levenlabs/go-lflag"
)

func main() {
	// init packages
	timeutil.Configured()
	inv := inverter.Configured()
	w := weather.Configured()
	t := tariff.Configured()
	plans := planfile.Configured()
	rec := metrics.New()

	// the channel pair linking the web layer to the dispatch loop
	commands := make(chan dispatcher.Command)
	responses := make(chan string)
	comms := dispatcher.NewComms(commands, responses)

	// init server
	srv := server.Configured(comms, rec)

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.LevelFromLLog()
	if err != nil {
		panic(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Ctx(ctx).InfoContext(ctx, "starting griddash", slog.String("version", common.Version()))

	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
			os.Exit(1)
		}
	}()

	// The dispatch loop owns all dashboard state. If it ever dies the state is
	// rebuilt from scratch: fresh channels are swapped into the comms handle so
	// in-flight web requests fail over to the new loop.
	for {
		d := dispatcher.New(inv, w, t, plans, rec)
		err := d.Run(ctx, commands, responses)
		if ctx.Err() != nil {
			break
		}
		log.Ctx(ctx).ErrorContext(ctx, "dispatch loop died, restarting", "error", err)

		commands = make(chan dispatcher.Command)
		responses = make(chan string)
		comms.Swap(commands, responses)
	}
	log.Ctx(ctx).InfoContext(ctx, "exited cleanly")
}
