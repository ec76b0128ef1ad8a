package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	headerUserID         = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"

	idempotencyTTL = 24 * time.Hour
)

// userID извлекает идентификатор пользователя из заголовка.
// Аутентификация вне зоны ответственности сервиса.
func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader(headerUserID)
	if id == "" {
		writeError(c, domain.ErrUserRequired)
		return "", false
	}
	return id, true
}

// bodyCapturingWriter дублирует ответ для сохранения в idempotency-записи.
type bodyCapturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCapturingWriter) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

// idempotencyMiddleware делает POST-запрос повторяемым по заголовку Idempotency-Key.
// Повтор с тем же ключом и телом возвращает сохранённый ответ; повтор с другим
// телом отклоняется как конфликт. Запрос без ключа обрабатывается как обычно.
func idempotencyMiddleware(repo domain.IdempotencyRepository, logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(headerIdempotencyKey)
		if key == "" || repo == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeError(c, domain.ErrIdempotencyRequestHashRequired)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		hash := requestHash(c, body)

		if _, err := repo.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL)); err != nil {
			switch {
			case errors.Is(err, domain.ErrIdempotencyHashMismatch):
				writeError(c, domain.ErrIdempotencyHashMismatch)
			case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
				replayOrReject(c, repo, key)
			default:
				writeError(c, err)
			}
			c.Abort()
			return
		}

		writer := &bodyCapturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		responseBody := writer.body.Bytes()

		var markErr error
		if status < http.StatusInternalServerError {
			markErr = repo.MarkDone(key, responseBody, status)
		} else {
			markErr = repo.MarkFailed(key, responseBody, status)
		}
		if markErr != nil {
			logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to finalize idempotency record")
		}
	}
}

// replayOrReject отвечает на повтор ключа: done — сохранённый ответ,
// processing — конфликт параллельной обработки, failed — разрешаем повторить.
func replayOrReject(c *gin.Context, repo domain.IdempotencyRepository, key string) {
	record, err := repo.Get(key)
	if err != nil {
		writeError(c, err)
		return
	}

	switch record.Status {
	case domain.IdempotencyStatusDone:
		c.Data(record.HTTPStatus, "application/json", record.ResponseBody)
	case domain.IdempotencyStatusFailed:
		if len(record.ResponseBody) > 0 {
			c.Data(record.HTTPStatus, "application/json", record.ResponseBody)
			return
		}
		writeError(c, domain.ErrIdempotencyKeyAlreadyExists)
	default:
		writeError(c, domain.ErrIdempotencyKeyAlreadyExists)
	}
}

func requestHash(c *gin.Context, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(c.Request.Method))
	sum.Write([]byte(c.Request.URL.Path))
	sum.Write([]byte(c.GetHeader(headerUserID)))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
