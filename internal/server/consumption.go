package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/aguas/internal/accessscope"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	obscontext "github.com/smallbiznis/aguas/internal/observability/context"
	"go.uber.org/zap"
)

type submitConsumptionRequest struct {
	MeterID string `json:"meter_id"`
	Date    string `json:"date"`
	Volume  *int64 `json:"volume"`
}

type updateConsumptionRequest struct {
	MeterID string `json:"meter_id"`
	Date    string `json:"date"`
	Volume  *int64 `json:"volume"`
	Version int64  `json:"version"`
}

func (s *Server) ListConsumptions(c *gin.Context) {
	caller, _ := callerFromContext(c)

	items, err := s.meterSvc.ListConsumptionsFor(c.Request.Context(), caller.Scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]consumptionListItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, toConsumptionListItem(item))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitConsumption(c *gin.Context) {
	var req submitConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Volume == nil {
		AbortWithError(c, newValidationError("volume", "invalid_volume", "volume is required"))
		return
	}
	meterID, err := parseID(req.MeterID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	caller, _ := callerFromContext(c)
	if err := s.ensureMeterInScope(ctx, caller.Scope, meterID); err != nil {
		AbortWithError(c, err)
		return
	}

	created, err := s.meterSvc.SubmitConsumption(ctx, meterdomain.SubmitRequest{
		MeterID: meterID,
		Date:    date,
		Volume:  *req.Volume,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toConsumptionResponse(*created)})
}

func (s *Server) GetConsumption(c *gin.Context) {
	consumption, ok := s.consumptionInScope(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toConsumptionResponse(*consumption)})
}

func (s *Server) UpdateConsumption(c *gin.Context) {
	consumption, ok := s.consumptionInScope(c)
	if !ok {
		return
	}

	var req updateConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Volume == nil {
		AbortWithError(c, newValidationError("volume", "invalid_volume", "volume is required"))
		return
	}
	meterID, err := parseOptionalID(req.MeterID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.meterSvc.UpdateConsumption(c.Request.Context(), meterdomain.UpdateRequest{
		ID:      consumption.ID,
		MeterID: meterID,
		Date:    date,
		Volume:  *req.Volume,
		Version: req.Version,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toConsumptionResponse(*updated)})
}

func (s *Server) DeleteConsumption(c *gin.Context) {
	consumption, ok := s.consumptionInScope(c)
	if !ok {
		return
	}

	meterID, err := s.meterSvc.DeleteConsumption(c.Request.Context(), consumption.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"meter_id": meterID.String()}})
}

func (s *Server) ApproveConsumption(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	markConsumption(c, id)

	ctx := c.Request.Context()
	detail, err := s.billing.Approve(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.sink.InvoiceCreated(context.WithoutCancel(ctx), *detail); err != nil {
		s.log.Warn("invoice notification failed",
			zap.String("consumption_id", id.String()),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusCreated, gin.H{"data": toInvoiceResponse(*detail)})
}

func (s *Server) GetConsumptionInvoice(c *gin.Context) {
	consumption, ok := s.consumptionInScope(c)
	if !ok {
		return
	}

	detail, err := s.meterSvc.GetInvoiceForConsumption(c.Request.Context(), consumption.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toInvoiceResponse(*detail)})
}

// consumptionInScope loads the :id consumption and hides it when the caller
// cannot see its meter. It aborts the request and reports false on failure.
func (s *Server) consumptionInScope(c *gin.Context) (*meterdomain.Consumption, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	markConsumption(c, id)

	ctx := c.Request.Context()
	consumption, err := s.meterSvc.GetConsumption(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	caller, _ := callerFromContext(c)
	if err := s.ensureMeterInScope(ctx, caller.Scope, consumption.MeterID); err != nil {
		if errors.Is(err, meterdomain.ErrMeterNotFound) {
			err = meterdomain.ErrConsumptionNotFound
		}
		AbortWithError(c, err)
		return nil, false
	}
	return consumption, true
}

func (s *Server) ensureMeterInScope(ctx context.Context, scope accessscope.Scope, meterID snowflake.ID) error {
	if scope.IsAll() {
		return nil
	}
	meter, err := s.meterSvc.GetMeter(ctx, meterID)
	if err != nil {
		return err
	}
	if !scope.Allows(meter.OwnerID) {
		return meterdomain.ErrMeterNotFound
	}
	return nil
}

// markConsumption tags the request context so the access log, the server span
// and every SQL statement of the request carry the consumption id.
func markConsumption(c *gin.Context, id snowflake.ID) {
	c.Request = c.Request.WithContext(obscontext.WithConsumptionID(c.Request.Context(), id.String()))
}
