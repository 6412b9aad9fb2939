package pipeline

// Step names one scoring pass over the pair table.
type Step string

const (
	StepLoad        Step = "load"
	StepStates      Step = "states"
	StepURLCheck    Step = "url_check"
	StepContentHash Step = "content_hash"
	StepEmbedding   Step = "embedding"
)

// CancelFunc reports whether the current run should stop. Processors
// poll it at checkpoint-interval granularity, not per record, so
// cancellation takes effect at the next checkpoint rather than
// instantaneously.
type CancelFunc func() bool

func neverCancel() bool { return false }

// Options tunes batch sizes and cancellation granularity for all
// processors. Zero values fall back to the worker defaults.
type Options struct {
	CSVPath         string
	EnableEmbedding bool

	BatchSizeLoad        int
	BatchSizeStates      int
	BatchSizeURL         int
	BatchSizeContentHash int
	BatchSizeEmbedding   int

	CacheMaxEntries    int
	CheckpointInterval int
}

func (o Options) withDefaults() Options {
	normalized := o
	if normalized.BatchSizeLoad <= 0 {
		normalized.BatchSizeLoad = 1000
	}
	if normalized.BatchSizeStates <= 0 {
		normalized.BatchSizeStates = 1000
	}
	if normalized.BatchSizeURL <= 0 {
		normalized.BatchSizeURL = 1000
	}
	if normalized.BatchSizeContentHash <= 0 {
		normalized.BatchSizeContentHash = 1000
	}
	if normalized.BatchSizeEmbedding <= 0 {
		normalized.BatchSizeEmbedding = 100
	}
	if normalized.CacheMaxEntries <= 0 {
		normalized.CacheMaxEntries = 10000
	}
	if normalized.CheckpointInterval <= 0 {
		normalized.CheckpointInterval = 250
	}
	return normalized
}
