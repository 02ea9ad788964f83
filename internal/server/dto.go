package server

import (
	"time"

	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
)

type meterResponse struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	SerialNumber int64     `json:"serial_number"`
	OwnerID      string    `json:"owner_id"`
	OwnerName    string    `json:"owner_name"`
	OwnerEmail   string    `json:"owner_email"`
	CreatedAt    time.Time `json:"created_at"`
}

type consumptionResponse struct {
	ID      string `json:"id"`
	MeterID string `json:"meter_id"`
	Date    string `json:"date"`
	Volume  int64  `json:"volume"`
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

type consumptionListItem struct {
	consumptionResponse
	MeterAddress      string `json:"meter_address"`
	MeterSerialNumber int64  `json:"meter_serial_number"`
	OwnerID           string `json:"owner_id"`
	OwnerName         string `json:"owner_name"`
	OwnerEmail        string `json:"owner_email"`
}

type meterDetailResponse struct {
	Meter        meterResponse         `json:"meter"`
	Consumptions []consumptionResponse `json:"consumptions"`
}

type tierUsageResponse struct {
	TierID     string `json:"tier_id"`
	Position   int    `json:"position"`
	VolumeUsed int64  `json:"volume_used"`
	UnitPrice  string `json:"unit_price"`
	Price      string `json:"price"`
}

type invoiceResponse struct {
	ID          string              `json:"id"`
	Number      string              `json:"number"`
	Price       string              `json:"price"`
	Volume      int64               `json:"volume"`
	IssuedAt    time.Time           `json:"issued_at"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
	TierUsages  []tierUsageResponse `json:"tier_usages"`
	Consumption consumptionResponse `json:"consumption"`
	Meter       meterResponse       `json:"meter"`
}

func toMeterResponse(m meterdomain.MeterView) meterResponse {
	return meterResponse{
		ID:           m.ID.String(),
		Address:      m.Address,
		SerialNumber: m.SerialNumber,
		OwnerID:      m.OwnerID.String(),
		OwnerName:    m.OwnerName,
		OwnerEmail:   m.OwnerEmail,
		CreatedAt:    m.CreatedAt,
	}
}

func toConsumptionResponse(c meterdomain.Consumption) consumptionResponse {
	return consumptionResponse{
		ID:      c.ID.String(),
		MeterID: c.MeterID.String(),
		Date:    c.ReadingDate.UTC().Format(dateOnlyLayout),
		Volume:  c.Volume,
		Status:  string(c.Status),
		Version: c.Version,
	}
}

func toConsumptionListItem(v meterdomain.ConsumptionView) consumptionListItem {
	return consumptionListItem{
		consumptionResponse: consumptionResponse{
			ID:      v.ID.String(),
			MeterID: v.MeterID.String(),
			Date:    v.ReadingDate.UTC().Format(dateOnlyLayout),
			Volume:  v.Volume,
			Status:  string(v.Status),
			Version: v.Version,
		},
		MeterAddress:      v.MeterAddress,
		MeterSerialNumber: v.MeterSerialNumber,
		OwnerID:           v.OwnerID.String(),
		OwnerName:         v.OwnerName,
		OwnerEmail:        v.OwnerEmail,
	}
}

func toMeterDetailResponse(d meterdomain.MeterDetail) meterDetailResponse {
	items := make([]consumptionResponse, 0, len(d.Consumptions))
	for _, c := range d.Consumptions {
		items = append(items, toConsumptionResponse(c))
	}
	return meterDetailResponse{Meter: toMeterResponse(d.Meter), Consumptions: items}
}

func toInvoiceResponse(d meterdomain.InvoiceDetail) invoiceResponse {
	usages := make([]tierUsageResponse, 0, len(d.Invoice.Usages))
	for _, u := range d.Invoice.Usages {
		usages = append(usages, toTierUsageResponse(u))
	}
	return invoiceResponse{
		ID:          d.Invoice.ID.String(),
		Number:      d.Invoice.Number,
		Price:       d.Invoice.Price.StringFixed(2),
		Volume:      d.Invoice.Volume,
		IssuedAt:    d.Invoice.IssuedAt,
		Metadata:    d.Invoice.Metadata,
		TierUsages:  usages,
		Consumption: toConsumptionResponse(d.Consumption),
		Meter:       toMeterResponse(d.Meter),
	}
}

func toTierUsageResponse(u invoicedomain.TierUsage) tierUsageResponse {
	return tierUsageResponse{
		TierID:     u.TierID.String(),
		Position:   u.Position,
		VolumeUsed: u.VolumeUsed,
		UnitPrice:  u.UnitPrice.StringFixed(2),
		Price:      u.Price.StringFixed(2),
	}
}
