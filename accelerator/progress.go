package accelerator

import (
	"sync"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// LogProgress reports upload progress through a logger. It is safe for concurrent use.
type LogProgress struct {
	mu       sync.Mutex
	total    int64
	uploaded int64
	logger   log.Logger
}

// NewLogProgress creates a progress sink for total bytes.
func NewLogProgress(total int64, logger log.Logger) *LogProgress {
	return &LogProgress{total: total, logger: logger}
}

// Advance ...
func (p *LogProgress) Advance(bytes int64) {
	p.mu.Lock()
	p.uploaded += bytes
	uploaded := p.uploaded
	p.mu.Unlock()

	if p.total > 0 {
		p.logger.Printf("Uploaded %s / %s (%d%%)", units.HumanSizeWithPrecision(float64(uploaded), 3), units.HumanSizeWithPrecision(float64(p.total), 3), uploaded*100/p.total)
	} else {
		p.logger.Printf("Uploaded %s", units.HumanSizeWithPrecision(float64(uploaded), 3))
	}
}

// Uploaded returns the number of bytes reported so far.
func (p *LogProgress) Uploaded() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploaded
}
