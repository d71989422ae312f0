package domain

// BulkFailure is one order that could not be transitioned.
type BulkFailure struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
	// Err is the original error, for classification by the caller.
	Err error `json:"-"`
}

// BulkResult is the per-item outcome of a bulk transition.
// Partial success is a normal result, not an error.
type BulkResult struct {
	UpdatedCount int           `json:"updated_count"`
	FailedCount  int           `json:"failed_count"`
	Updated      []string      `json:"updated"`
	Failures     []BulkFailure `json:"failures"`
}
