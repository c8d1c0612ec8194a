package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	receiveTimeout    = time.Second
	keepaliveComment  = ": keepalive\n\n"
	invalidSessionMsg = `{"error": "Invalid session ID"}`
)

// CreateSessionHandler は新しいログセッションを発行するハンドラーを返します。
func CreateSessionHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := registry.Create()
		c.JSON(http.StatusOK, gin.H{"session_id": id})
	}
}

// StreamHandler はセッションのイベントをSSEで配信するハンドラーを返します。
// 終端イベントの配信、またはクライアント切断でストリームを終了し、
// どちらの場合もセッションを破棄します。
func StreamHandler(registry *Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		queue, ok := registry.Get(sessionID)
		if !ok {
			fmt.Fprintf(c.Writer, "data: %s\n\n", invalidSessionMsg)
			c.Writer.Flush()
			return
		}

		defer func() {
			registry.Destroy(sessionID)
			logger.Info("session stream closed",
				zap.String("sessionId", sessionID),
				zap.Int64("droppedEvents", queue.Dropped()))
		}()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			evt, ok := queue.Receive(receiveTimeout)
			if !ok {
				fmt.Fprint(c.Writer, keepaliveComment)
				c.Writer.Flush()
				continue
			}

			payload, err := json.Marshal(evt)
			if err != nil {
				logger.Error("failed to encode session event",
					zap.String("sessionId", sessionID), zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			c.Writer.Flush()

			if evt.Terminal() {
				return
			}
		}
	}
}
