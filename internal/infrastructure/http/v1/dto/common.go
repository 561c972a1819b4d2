// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// --- Generic responses ---

// IDResponse returns the ID of the created/affected resource.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse indicates operation success.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ListResponse wraps list results with paging metadata.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Overrides ---

// OverrideRequest sets or clears a manual dispatched override.
// A null quantity clears the override.
type OverrideRequest struct {
	Quantity *float64 `json:"quantity"`
}
