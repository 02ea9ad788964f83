package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
)

type createMeterRequest struct {
	Address      string `json:"address"`
	SerialNumber int64  `json:"serial_number"`
	OwnerID      string `json:"owner_id"`
}

func (s *Server) ListMeters(c *gin.Context) {
	caller, _ := callerFromContext(c)

	items, err := s.meterSvc.ListMetersFor(c.Request.Context(), caller.Scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]meterResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toMeterResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateMeter(c *gin.Context) {
	var req createMeterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ownerID, err := parseID(req.OwnerID)
	if err != nil {
		AbortWithError(c, meterdomain.ErrOwnerNotFound)
		return
	}

	resp, err := s.meterSvc.CreateMeter(c.Request.Context(), meterdomain.CreateMeterRequest{
		Address:      strings.TrimSpace(req.Address),
		SerialNumber: req.SerialNumber,
		OwnerID:      ownerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toMeterResponse(*resp)})
}

func (s *Server) GetMeter(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.meterSvc.GetMeterWithConsumptions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	caller, _ := callerFromContext(c)
	if !caller.Scope.Allows(detail.Meter.OwnerID) {
		AbortWithError(c, meterdomain.ErrMeterNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toMeterDetailResponse(*detail)})
}

func (s *Server) DeleteMeter(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.meterSvc.DeleteMeter(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
