package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// HeaderEventID carries the CloudEvents id of a pushed storage notification.
	HeaderEventID = "Ce-Id"
	// HeaderRetryable is set by the handler when re-delivering the same event may make progress.
	HeaderRetryable = "X-Event-Retryable"
)

type guardEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	EventID    string    `json:"event_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	if r.buf != nil {
		r.buf.Write(b)
	}
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// EventGuard lets one delivery of a storage event run at a time and replays the
// stored response to later deliveries. Events without a Ce-Id are keyed by body hash.
// A response marked retryable, or any 5xx, releases the key so the next delivery runs.
func EventGuard(rdb *redis.Client, inFlight, keep time.Duration, log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(body))
			bhash := bodyHash(body)

			eventID := strings.TrimSpace(req.Header.Get(HeaderEventID))
			if eventID == "" {
				eventID = "sha256:" + bhash
			}
			key := buildKey(c.Path(), eventID)

			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			ok, err := provisionalSet(ctx, rdb, key, guardEntry{
				InProgress: true,
				BodySHA256: bhash,
				EventID:    eventID,
				CreatedAt:  nowUTC(),
			}, inFlight)
			if err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "event guard unavailable"})
			}
			if !ok {
				cur, errLoad := loadEntry(ctx, rdb, key)
				if errLoad != nil {
					log.WithFields(logrus.Fields{"key": key, "error": errLoad}).Warn("event guard entry not loaded")
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
					return c.JSON(http.StatusConflict, map[string]string{"error": "event id reused with different body"})
				}
				if !cur.InProgress && cur.Code != 0 && len(cur.Body) > 0 {
					return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
				}
				return c.JSON(http.StatusConflict, map[string]string{"error": "event is already being processed"})
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			if rec.code >= http.StatusInternalServerError || rec.Header().Get(HeaderRetryable) == "true" {
				if err := release(context.Background(), rdb, key); err != nil {
					log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("event guard key not released")
				}
				return nil
			}
			final := guardEntry{
				Code:       rec.code,
				Body:       rec.buf.Bytes(),
				BodySHA256: bhash,
				EventID:    eventID,
				CreatedAt:  nowUTC(),
			}
			if err := saveFinal(context.Background(), rdb, key, final, keep); err != nil {
				log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("event guard response not stored")
			}
			return nil
		}
	}
}
