package models

// ListRequest selects one page of a booking collection.
type ListRequest struct {
	Page     int
	PageSize int
	Status   Filter
	Query    string
}

// ListResponse is one page plus the pagination metadata that goes with it.
// Counts is nil when the server did not supply per-tab counts.
type ListResponse struct {
	Items     []*Booking
	Total     int
	PageCount int
	Counts    Counts
}

// StatusUpdate is the body of a status transition request. Price is only
// sent when completing.
type StatusUpdate struct {
	Status Status   `json:"status"`
	Price  *float64 `json:"price,omitempty"`
}
