package dto

import (
	"time"

	"procura/internal/domain/reports"
)

// FulfillmentReportResponse is the fulfillment report envelope.
// Rows and aggregates come straight from the domain report; quantities marshal
// as fixed-point numbers.
type FulfillmentReportResponse struct {
	Rows       []reports.FulfillmentRow `json:"rows"`
	TotalCount int64                    `json:"totalCount"`

	TotalPromised   string `json:"totalPromised"`
	TotalDispatched string `json:"totalDispatched"`
	TotalReceived   string `json:"totalReceived"`
	TotalRejected   string `json:"totalRejected"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// FromFulfillmentReport converts the domain report to a response DTO.
func FromFulfillmentReport(report *reports.FulfillmentReport) FulfillmentReportResponse {
	return FulfillmentReportResponse{
		Rows:            report.Rows,
		TotalCount:      report.TotalCount,
		TotalPromised:   report.TotalPromised.String(),
		TotalDispatched: report.TotalDispatched.String(),
		TotalReceived:   report.TotalReceived.String(),
		TotalRejected:   report.TotalRejected.String(),
		GeneratedAt:     report.GeneratedAt,
	}
}
