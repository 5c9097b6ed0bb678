package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/poller"
)

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"poller":      s.deps.Poller.Status(),
		"coordinator": s.deps.Coordinator.Stats(),
		"dispatcher":  s.deps.Dispatcher.Stats(),
	})
}

type controlRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) handleControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := poller.ControlMessage(req.Message)
	switch msg {
	case poller.MsgStop, poller.MsgInvalidateSubmissions, poller.MsgReloadMetadata:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown control message"})
		return
	}
	if err := s.deps.Poller.Control(msg); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": string(msg)})
}

func (s *Server) handleJobsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.deps.Scheduler.Jobs()})
}

func (s *Server) handleJobTrigger(c *gin.Context) {
	name := c.Param("name")
	if err := s.deps.Scheduler.Trigger(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ran": name})
}

func (s *Server) handleOutcomesList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	status := c.Query("status")
	rows, err := s.listOutcomes(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": rows})
}

func (s *Server) handleFlairGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Coordinator.Get(c.Param("username")))
}

func (s *Server) handleUnitGet(c *gin.Context) {
	id := c.Param("comment")
	h, ok := s.deps.Dispatcher.Lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no unit for comment"})
		return
	}
	if !h.Done() {
		c.JSON(http.StatusOK, gin.H{"comment_id": id, "state": "running"})
		return
	}
	outcome, err := h.Await(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"comment_id": id, "state": "failed", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment_id": id, "state": "finished", "outcome": outcome})
}
