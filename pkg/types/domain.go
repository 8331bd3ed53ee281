package types

// PipelineCounters are the running totals of one monitoring session.
type PipelineCounters struct {
	// Lines read from the log source.
	// example: 18234
	LinesRead uint64 `json:"lines_read" example:"18234"`
	// Lines carrying the rich-presence marker and a JSON fragment.
	// example: 42
	Candidates uint64 `json:"candidates" example:"42"`
	// Fragments dropped because they were not valid JSON.
	// example: 1
	Malformed uint64 `json:"malformed" example:"1"`
	// Fragments without a data object.
	// example: 3
	Ignored uint64 `json:"ignored" example:"3"`
	// Domain events emitted, keyed by kind (item_equipped, zone_ended, zone_started).
	Events map[string]uint64 `json:"events"`
	// Payloads handed to the delivery sink.
	// example: 12
	DeliveriesDispatched uint64 `json:"deliveries_dispatched" example:"12"`
	// Deliveries acknowledged with a 2xx response.
	// example: 11
	DeliveriesOK uint64 `json:"deliveries_ok" example:"11"`
	// Deliveries that failed (network error or non-2xx).
	// example: 1
	DeliveriesFailed uint64 `json:"deliveries_failed" example:"1"`
}
