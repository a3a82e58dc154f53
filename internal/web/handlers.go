package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tgienger/shiush/internal/offline"
)

const maxControlSize = 4 << 10 // 4KB

type syncRequest struct {
	Tag string `json:"tag" binding:"required"`
}

func (s *Server) handleMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxControlSize)

	var msg offline.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		return
	}

	err := s.reg.HandleMessage(c.Request.Context(), msg)
	switch {
	case errors.Is(err, offline.ErrUnknownMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.reg.Status())
}

func (s *Server) handleSync(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxControlSize)

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is required"})
		return
	}

	if err := s.reg.Sync(c.Request.Context(), req.Tag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"tag": req.Tag})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.reg.Status())
}

func (s *Server) handleCaches(c *gin.Context) {
	caches, err := s.reg.CacheStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"caches": caches})
}

// handleEvents streams broadcasts to one page. When the last page goes
// away a waiting worker takes over.
func (s *Server) handleEvents(c *gin.Context) {
	controller := ""
	if w := s.reg.Active(); w != nil {
		controller = w.Version()
	}
	client := s.reg.Clients().Add(controller)
	defer func() {
		if s.reg.Clients().Remove(client.ID) == 0 {
			if err := s.reg.Reload(context.Background()); err != nil {
				s.log.Printf("web: reload: %v", err)
			}
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
