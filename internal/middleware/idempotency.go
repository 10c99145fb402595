package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
	idempotencyTTL          = 24 * time.Hour
	// idempotencyLockTTL bounds how long a crashed request can block retries.
	idempotencyLockTTL = 30 * time.Second
)

// storedResponse is what gets replayed for a repeated key.
type storedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// recordingWriter tees the response body so it can be stored.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// replayStore keeps responses and in-flight markers per scoped key.
type replayStore struct {
	client redis.Cmdable
}

func (s replayStore) load(ctx context.Context, key string) (*storedResponse, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s replayStore) save(ctx context.Context, key string, resp storedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, idempotencyTTL).Err()
}

func (s replayStore) lock(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, key+":lock", "1", idempotencyLockTTL).Result()
}

func (s replayStore) unlock(ctx context.Context, key string) {
	s.client.Del(ctx, key+":lock")
}

func replay(c *gin.Context, stored *storedResponse) {
	c.Header(idempotencyReplayHeader, "true")
	c.Data(stored.StatusCode, stored.ContentType, stored.Body)
	c.Abort()
}

// scopedKey namespaces a client key by caller, method, route and resource so
// one user's key can never replay another user's response.
func scopedKey(c *gin.Context, key string) string {
	return strings.Join([]string{
		"idempotency",
		UserID(c),
		c.Request.Method,
		c.FullPath(),
		c.Param("id"),
		key,
	}, ":")
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key, so a retried booking request cannot reserve capacity
// twice. A request whose key is still being processed gets 409. Redis
// failures degrade to normal processing.
func IdempotencyMiddleware(client redis.Cmdable) gin.HandlerFunc {
	store := replayStore{client: client}

	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scoped := scopedKey(c, key)

		stored, err := store.load(ctx, scoped)
		switch {
		case err == nil:
			replay(c, stored)
			return
		case !errors.Is(err, redis.Nil):
			c.Next()
			return
		}

		acquired, err := store.lock(ctx, scoped)
		if err != nil {
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "a request with this idempotency key is still in progress",
				"code":  "idempotency_in_progress",
			})
			return
		}
		detached := context.WithoutCancel(ctx)
		defer store.unlock(detached, scoped)

		// The previous holder may have stored its response between load and lock.
		if stored, err := store.load(ctx, scoped); err == nil {
			replay(c, stored)
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Server errors are not stored so the client can retry them.
		if status := w.Status(); status >= 200 && status < 500 {
			contentType := w.Header().Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			_ = store.save(detached, scoped, storedResponse{
				StatusCode:  status,
				ContentType: contentType,
				Body:        w.body.Bytes(),
			})
		}
	}
}
