package constants

// Confidence is the model's self-reported certainty for a material line.
type Confidence string

const (
	High   Confidence = "High"
	Medium Confidence = "Medium"
	Low    Confidence = "Low"
)

const (
	DefaultConfidence = string(Medium)
	DefaultUnit       = "EA"
)
