package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"library_lending/idempotency"
)

const (
	MsgRequestInFlight       = "Aynı istek şu anda işleniyor"
	MsgIdempotencyKeyTooLong = "Idempotency-Key en fazla 255 karakter olabilir"
	MsgIdempotencyKeyReused  = "Idempotency-Key farklı bir istek için kullanılmış"
)

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// bodyHash reads the request body, puts it back, and returns its sha256.
func bodyHash(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(b))
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// replay answers with a stored response, or 422 when the key was used for another body.
func replay(c *gin.Context, rec *idempotency.Record, hash string) {
	if rec.BodyHash != "" && rec.BodyHash != hash {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, H{"error": MsgIdempotencyKeyReused})
		return
	}
	c.Header(HeaderReplayed, "true")
	c.Data(rec.Status, rec.ContentType, rec.Body)
	c.Abort()
}

// Idempotent replays the first response for a repeated Idempotency-Key.
// Redis failures are logged and the request goes through unprotected.
func Idempotent(store IdempotencyStore, scope string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if store == nil || key == "" {
			c.Next()
			return
		}
		if len(key) > 255 {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, H{"error": MsgIdempotencyKeyTooLong})
			return
		}
		ctx := c.Request.Context()

		hash, err := bodyHash(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, H{"error": err.Error()})
			return
		}

		rec, err := store.Load(ctx, scope, key)
		if err != nil {
			log.WarnContext(ctx, "idempotency.load_failed", "err", err, "request_id", RequestIDFrom(c))
			c.Next()
			return
		}
		if rec != nil {
			replay(c, rec, hash)
			return
		}

		ok, err := store.Reserve(ctx, scope, key)
		if err != nil {
			log.WarnContext(ctx, "idempotency.reserve_failed", "err", err, "request_id", RequestIDFrom(c))
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, H{"error": MsgRequestInFlight})
			return
		}

		// 请求可能已被取消，落盘不跟随
		bg := context.WithoutCancel(ctx)
		release := func() {
			if err := store.Release(bg, scope, key); err != nil {
				log.WarnContext(ctx, "idempotency.release_failed", "err", err)
			}
		}

		// Load 与 Reserve 之间前一个请求可能已完成并释放了锁
		if rec, err := store.Load(ctx, scope, key); err == nil && rec != nil {
			release()
			replay(c, rec, hash)
			return
		}

		finished := false
		defer func() {
			// handler panic：放锁，交给外层 Recovery
			if !finished {
				release()
			}
		}()

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()
		finished = true

		status := w.Status()
		if status >= http.StatusInternalServerError {
			release()
			return
		}
		err = store.Save(bg, scope, key, idempotency.Record{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.buf.Bytes(),
			BodyHash:    hash,
		})
		if err != nil {
			log.WarnContext(ctx, "idempotency.save_failed", "err", err)
		}
	}
}
