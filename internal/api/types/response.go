// internal/api/types/response.go
package types

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse defines a generic structure for list API responses.
// T represents the type of data contained in the 'Data' slice.
type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Count  int `json:"count"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
