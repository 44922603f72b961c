package constants

// ExtractionStrategy is how page content gets turned into a dataset.
type ExtractionStrategy string

// Stable values (stored verbatim in job and dataset records).
const (
	StrategyAuto      ExtractionStrategy = "auto"
	StrategyPDFText   ExtractionStrategy = "pdf_text"
	StrategyOCR       ExtractionStrategy = "ocr"
	StrategyVisionLLM ExtractionStrategy = "vision_llm"
)

// ParseStrategy maps a request string to a known strategy.
func ParseStrategy(s string) (ExtractionStrategy, bool) {
	switch ExtractionStrategy(s) {
	case StrategyAuto, StrategyPDFText, StrategyOCR, StrategyVisionLLM:
		return ExtractionStrategy(s), true
	}
	return "", false
}

// JobStatus is the canonical status for extraction job records.
type JobStatus string

const (
	JobPending     JobStatus = "pending" // part of the enum, never observed: jobs enter running on creation
	JobRunning     JobStatus = "running"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
	JobNeedsOCR    JobStatus = "needs_ocr"
	JobNeedsVision JobStatus = "needs_vision"
)

// Terminal reports whether the status is final. Terminal jobs are write-once.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobNeedsOCR, JobNeedsVision:
		return true
	}
	return false
}
