package model

// Email is one message read from a batch source.
type Email struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"-"` // where it came from (file path, "stdin")
	Text   string `json:"email"`
}

// Classified pairs an email identifier with its prediction.
type Classified struct {
	ID string `json:"id,omitempty"`
	PredictionResult
}
