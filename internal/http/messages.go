package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/sms-ingest/internal/repository"
	echo "github.com/labstack/echo/v4"
)

// listMessagesHandler serves GET /messages: filterable, paginated, always
// ordered by (ts, message_id) ascending. `total` ignores pagination.
func listMessagesHandler(repo repository.MessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		since := strings.TrimSpace(c.QueryParam("since"))
		if since != "" && !validISOTimestamp(since) {
			return c.JSON(http.StatusUnprocessableEntity,
				map[string]string{"detail": "since must be ISO-8601 UTC timestamp"})
		}

		f := repository.ListFilter{
			From:   strings.TrimSpace(c.QueryParam("from")),
			Since:  since,
			Q:      c.QueryParam("q"),
			Limit:  limit,
			Offset: offset,
		}

		data, total, err := repo.List(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("messages list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"data":   data,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// validISOTimestamp accepts both the Z suffix and +00:00 notation, matching
// the lenient read-side contract (the webhook write side is stricter).
func validISOTimestamp(s string) bool {
	_, err := time.Parse(time.RFC3339, strings.ReplaceAll(s, "Z", "+00:00"))
	return err == nil
}
