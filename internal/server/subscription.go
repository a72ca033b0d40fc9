package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetSubscriptionOverview(c *gin.Context) {
	overview, err := s.subscriptionSvc.Overview(c.Request.Context(), c.Param("hospital_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": overview})
}
