package diagnosis

// Result is the response body of a successful prediction.
type Result struct {
	Prediction       string      `json:"prediction" msgpack:"prediction"`
	IsDiseasePresent bool        `json:"is_disease_present" msgpack:"is_disease_present"`
	Confidence       float64     `json:"confidence" msgpack:"confidence"`
	Raw              [][]float32 `json:"raw" msgpack:"raw"`
}
