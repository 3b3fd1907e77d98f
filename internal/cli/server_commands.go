package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/storylinez/storylinez-go/internal/handler"
	"github.com/storylinez/storylinez-go/internal/middleware"
	"github.com/storylinez/storylinez-go/internal/model"
	"github.com/storylinez/storylinez-go/internal/service"
	ws "github.com/storylinez/storylinez-go/internal/websocket"
	"github.com/storylinez/storylinez-go/internal/worker"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

// pendingRetryDelay spaces attempts on a run whose remote job outlived the poll timeout.
const pendingRetryDelay = time.Minute

func newApp(e *env, svc *service.PipelineService) *fiber.App {
	h := handler.NewPipelineHandler(svc, validator.New())
	if e.rdb == nil {
		return handler.NewApp(h, e.log)
	}
	limiter := middleware.NewRateLimiter(e.rdb, e.log)
	return handler.NewApp(h, e.log, limiter.EnqueueLimit(e.cfg.Server.EnqueuePerHour))
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.String("port", "", "listen port (default SERVER_PORT)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := loadEnv(true)
	if err != nil {
		return err
	}
	svc, closeAll, err := e.pipelineService()
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer closeAll()

	app := newApp(e, svc)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		e.log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			e.log.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + listenPort(e, *port)
	e.log.Info("server starting", "addr", addr)
	return app.Listen(addr)
}

func runWorker(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	concurrency := fs.Int("concurrency", 4, "runs executed in parallel")
	port := fs.String("port", "", "status API port (default SERVER_PORT)")
	noHTTP := fs.Bool("no-http", false, "do not serve the status API")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *concurrency < 1 {
		return errors.New("--concurrency must be at least 1")
	}

	e, err := loadEnv(true)
	if err != nil {
		return err
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	svc, closeAll, err := e.pipelineService()
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer closeAll()

	srv := asynq.NewServer(e.redisOpt(), asynq.Config{
		Concurrency: *concurrency,
		Queues:      map[string]int{service.QueueName: 1},
		RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
			if pipeline.IsPending(err) {
				return pendingRetryDelay
			}
			return asynq.DefaultRetryDelayFunc(n, err, t)
		},
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	var notify worker.Notifier
	var hub *ws.Hub
	if !*noHTTP {
		hub = ws.NewHub(e.log)
		go hub.Run(hubCtx)
		notify = hub
	}

	w := worker.NewPipelineWorker(svc, worker.Orchestrators(c, e.pipelineOptions(context.Background())), notify, e.log)
	mux := asynq.NewServeMux()
	mux.HandleFunc(model.TaskTypePipeline, w.ProcessTask)

	var app *fiber.App
	if !*noHTTP {
		app = newApp(e, svc)
		handler.MountRunStream(app, hub)
		addr := ":" + listenPort(e, *port)
		go func() {
			e.log.Info("server starting", "addr", addr)
			if err := app.Listen(addr); err != nil {
				e.log.Error("server error", "error", err)
			}
		}()
	}

	// Run blocks until SIGINT or SIGTERM.
	err = srv.Run(mux)
	stopHub()
	if app != nil {
		if serr := app.ShutdownWithTimeout(10 * time.Second); serr != nil {
			e.log.Error("server shutdown error", "error", serr)
		}
	}
	return err
}

func listenPort(e *env, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return e.cfg.Server.Port
}
