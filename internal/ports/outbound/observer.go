package outbound

import (
	"time"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

// PipelineObserver receives pipeline measurements. Implementations must be
// safe for concurrent use.
type PipelineObserver interface {
	CrawlCompleted(level1, level2, included int)
	ParseCompleted(task pairing.TaskType, outcome string)
	Truncated(task pairing.TaskType)
	PipelineCompleted(task pairing.TaskType, code string, elapsed time.Duration)
}

// NopObserver discards all measurements.
type NopObserver struct{}

func (NopObserver) CrawlCompleted(int, int, int)                              {}
func (NopObserver) ParseCompleted(pairing.TaskType, string)                   {}
func (NopObserver) Truncated(pairing.TaskType)                                {}
func (NopObserver) PipelineCompleted(pairing.TaskType, string, time.Duration) {}
