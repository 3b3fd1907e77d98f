package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/storylinez/storylinez-go/internal/handler"
	"github.com/storylinez/storylinez-go/internal/middleware"
	"github.com/storylinez/storylinez-go/internal/service"
	"github.com/storylinez/storylinez-go/internal/store"
)

const (
	redisAddr = "localhost:6379"
	redisDB   = 15 // use DB 15 for tests to avoid collision
)

// testApp holds all components needed for testing
type testApp struct {
	app       *fiber.App
	rdb       *redis.Client
	inspector *asynq.Inspector
}

// setupApp wires the status API the way the serve command does, against a
// local Redis. Tests are skipped when Redis is not running.
func setupApp(t *testing.T, enqueuePerHour int) *testApp {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, DB: redisDB})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		t.Skipf("redis not available at %s: %v", redisAddr, err)
	}
	t.Cleanup(func() { rdb.Close() })

	opt := asynq.RedisClientOpt{Addr: redisAddr, DB: redisDB}
	asynqClient := asynq.NewClient(opt)
	t.Cleanup(func() { asynqClient.Close() })
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { inspector.Close() })

	svc := service.NewPipelineService(store.NewRedisStore(rdb, store.DefaultTTL), asynqClient, 3)
	h := handler.NewPipelineHandler(svc, validator.New())
	limiter := middleware.NewRateLimiter(rdb, nil)

	// Every request from app.Test shares one address.
	keys, _ := rdb.Keys(context.Background(), "ratelimit:*").Result()
	if len(keys) > 0 {
		rdb.Del(context.Background(), keys...)
	}

	return &testApp{
		app:       handler.NewApp(h, nil, limiter.EnqueueLimit(enqueuePerHour)),
		rdb:       rdb,
		inspector: inspector,
	}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertErrorCode(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	body := parseJSON(t, resp)
	detail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if detail["code"] != expected {
		t.Errorf("expected error code %q, got %v", expected, detail["code"])
	}
}
