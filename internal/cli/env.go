package cli

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/storylinez/storylinez-go/internal/archive"
	"github.com/storylinez/storylinez-go/internal/config"
	"github.com/storylinez/storylinez-go/internal/logging"
	"github.com/storylinez/storylinez-go/internal/service"
	"github.com/storylinez/storylinez-go/internal/store"
	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

// env is the configuration and shared wiring of one command invocation.
type env struct {
	cfg *config.Config
	log *slog.Logger
	rdb *redis.Client
}

func loadEnv(jsonLogs bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.Setup(cfg.Log.Debug, jsonLogs || cfg.Log.Format == "json")
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) client() (*client.Client, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	cc := e.cfg.ClientConfig()
	cc.Logger = e.log
	return client.New(cc), nil
}

func (e *env) pipelineOptions(ctx context.Context) pipeline.Options {
	poll := e.cfg.PollOptions()
	poll.Logger = e.log
	opts := pipeline.Options{
		Poll:       poll,
		MaxRetries: e.cfg.API.MaxRetries,
		Logger:     e.log,
	}
	if e.cfg.R2.Enabled() {
		a, err := archive.NewR2Archiver(ctx, e.cfg.R2, e.log)
		if err != nil {
			e.log.Warn("render archival disabled", "error", err)
		} else {
			opts.Archiver = a
		}
	}
	return opts
}

func (e *env) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     e.cfg.Redis.Addr,
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
	}
}

func (e *env) redis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     e.cfg.Redis.Addr,
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
	})
}

// pipelineService connects the run store and queue. The returned closer
// releases both connections.
func (e *env) pipelineService() (*service.PipelineService, func(), error) {
	rdb := e.redis()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, nil, err
	}
	e.rdb = rdb
	q := asynq.NewClient(e.redisOpt())
	svc := service.NewPipelineService(store.NewRedisStore(rdb, store.DefaultTTL), q, e.cfg.API.MaxRetries)
	closer := func() {
		q.Close()
		rdb.Close()
	}
	return svc, closer, nil
}
