package health

import (
	"context"
	"runtime"
	"time"

	"papertrade-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

type Handlers struct {
	Rdb *redis.Client
	DB  DBPinger
}

type depStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// JSON GET /health/json — DB/Redis connectivity plus runtime info.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	deps := map[string]depStatus{}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if h.DB != nil {
		start := time.Now()
		if err := h.DB.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
		} else {
			dbStatus = "error"
		}
	}
	deps["database"] = depStatus{Status: dbStatus, PingMs: dbPingMs}

	redisStatus := "disconnected"
	var redisPingMs *int64
	if h.Rdb != nil {
		start := time.Now()
		if err := h.Rdb.Ping(context.Background()).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"
		} else {
			redisStatus = "error"
		}
	}
	deps["redis"] = depStatus{Status: redisStatus, PingMs: redisPingMs}

	status := "issue"
	if dbStatus == "connected" && redisStatus == "connected" {
		status = "ok"
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return response.Success(c, "Health", fiber.Map{
		"status":       status,
		"dependencies": deps,
		"runtime": fiber.Map{
			"platform":  runtime.GOOS + " (" + runtime.GOARCH + ")",
			"goVersion": runtime.Version(),
			"heapMB":    int(m.HeapInuse / 1024 / 1024),
		},
	}, nil)
}
