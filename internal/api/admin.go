package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxAuditEntries = 200

func (s *Server) listUsers(c *gin.Context) {
	page, pageSize := pageParams(c)

	result, err := s.accounts.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) recentAudit(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	if limit < 1 || limit > maxAuditEntries {
		limit = 50
	}

	entries, err := s.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
