package domain

// Quote is the priced result for a single mesh.
type Quote struct {
	VolumeCM3 float64 `json:"volume_cm3"`
	Price     float64 `json:"price"`
}

// QuoteRequest is the body accepted by the analyze endpoint.
type QuoteRequest struct {
	FileURL string `json:"fileUrl"`
}
