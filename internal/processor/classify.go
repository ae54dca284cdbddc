package processor

// Decision is the size policy outcome for one artifact.
type Decision string

const (
	Direct   Decision = "direct"
	Compress Decision = "compress"
	Chunk    Decision = "chunk"
)

// Classifier compares artifact sizes against the effective capacity limit.
type Classifier struct {
	Limit int64
}

func NewClassifier(limit int64) Classifier {
	return Classifier{Limit: limit}
}

// Classify returns Direct when size fits and Compress otherwise; compression
// is always attempted before chunking.
func (c Classifier) Classify(size int64) Decision {
	if c.Fits(size) {
		return Direct
	}
	return Compress
}

// ClassifyCompressed decides for an artifact that has already been compressed.
func (c Classifier) ClassifyCompressed(size int64) Decision {
	if c.Fits(size) {
		return Direct
	}
	return Chunk
}

func (c Classifier) Fits(size int64) bool {
	return size <= c.Limit
}
