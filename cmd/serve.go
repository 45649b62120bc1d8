package main

import (
	"context"
	"net/http"

	"github.com/desertthunder/crate/internal/server"
	"github.com/desertthunder/crate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the trigger endpoint and the interval scheduler until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.pipeline(ctx, nil, false)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	stopScheduler := r.startScheduler(ctx, engine, !cmd.Bool("no-schedule"))
	err = server.Serve(ctx, addr, r.handler(engine), r.logger)
	stopScheduler()
	engine.Wait()
	return err
}

// startScheduler runs the interval scheduler in the background. The returned func stops it
// and blocks until it can no longer trigger runs.
func (r *Runner) startScheduler(ctx context.Context, engine *tasks.PipelineEngine, enabled bool) func() {
	if !enabled {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	scheduler := tasks.NewScheduler(engine, r.config.Pipeline.ScheduleInterval.Duration, r.logger)
	go func() {
		defer close(done)
		scheduler.Start(ctx)
	}()

	return func() {
		cancel()
		<-done
	}
}

// handler builds the trigger service routes.
func (r *Runner) handler(engine *tasks.PipelineEngine) http.Handler {
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.RequestLogger(r.logger))
	router.Handle(http.MethodGet, "/api/health", server.Health(engine))
	if r.config.Server.TriggerToken == "" {
		r.logger.Warn("server.trigger_token is empty; POST /api/ingest accepts unauthenticated requests")
	}
	router.Use(server.BearerAuth(r.config.Server.TriggerToken))
	router.Handler(server.NewIngestHandler(engine, r.writer, tasks.TriggerHTTP, r.logger))
	return router
}
