package engine

import (
	"context"
	"time"

	"github.com/kbsync/kbsync/internal/ragsink"
	"github.com/kbsync/kbsync/internal/source"
)

// ConnectivityReport is the outcome of CheckConnectivity: whether each side of a
// knowledge base's pipeline answered, without performing any sync work.
type ConnectivityReport struct {
	SourceReachable bool
	SourceError     string
	SourceLatency   time.Duration

	RAGReachable bool
	RAGError     string
	RAGLatency   time.Duration
}

// OK reports whether both the source and the RAG adapter answered.
func (r ConnectivityReport) OK() bool {
	return r.SourceReachable && r.RAGReachable
}

// CheckConnectivity probes src and rag with their cheapest available calls and
// reports reachability, without touching the catalog or performing a sync (spec
// SPEC_FULL §12 item 1, the supplemented connectivity command). It never returns
// an error itself: failures are recorded in the returned report.
func CheckConnectivity(ctx context.Context, src source.Adapter, rag ragsink.Adapter) ConnectivityReport {
	var report ConnectivityReport

	start := time.Now()
	_, err := src.List(ctx)
	report.SourceLatency = time.Since(start)
	if err != nil {
		report.SourceError = err.Error()
	} else {
		report.SourceReachable = true
	}

	start = time.Now()
	_, err = rag.List(ctx, "")
	report.RAGLatency = time.Since(start)
	if err != nil {
		report.RAGError = err.Error()
	} else {
		report.RAGReachable = true
	}

	return report
}
