package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmehdipour/sms-ingest/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const statsCacheKey = "stats:summary"

// statsHandler serves GET /stats. Aggregates come from MySQL; a short-lived
// Redis cache absorbs repeat traffic. Cache misses and Redis outages fall
// through to the database.
func statsHandler(repo repository.MessagesRepository, rds *redis.Client, ttl time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if rds != nil {
			if raw, err := rds.Get(ctx, statsCacheKey).Bytes(); err == nil {
				return c.JSONBlob(http.StatusOK, raw)
			}
		}

		s, err := repo.Stats(ctx)
		if err != nil {
			c.Logger().Errorf("stats query failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
		}

		if rds != nil && ttl > 0 {
			if raw, err := json.Marshal(s); err == nil {
				_ = rds.Set(ctx, statsCacheKey, raw, ttl).Err()
			}
		}

		return c.JSON(http.StatusOK, s)
	}
}
