package response

// Response is the envelope every API handler returns. Detail carries a
// human-readable error message and is empty on success.
type Response struct {
	Count   int    `json:"count,omitempty"`
	Results any    `json:"results,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
