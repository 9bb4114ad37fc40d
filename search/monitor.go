package search

import (
	"github.com/poiesic/semsearch/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(req *core.SearchRequest)
	AfterQueryProcessing(processed string, intent core.Intent, strategy Strategy)
	AfterEmbedding(model string, tokens int)
	AfterVectorSearch(ids []string)
	AfterTextSearch(ids []string)
	AfterFiltering(remaining int)
	Finish(resp *core.SearchResponse)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.SearchRequest)                              {}
func (n *noopMonitor) AfterQueryProcessing(_ string, _ core.Intent, _ Strategy) {}
func (n *noopMonitor) AfterEmbedding(_ string, _ int)                           {}
func (n *noopMonitor) AfterVectorSearch(_ []string)                             {}
func (n *noopMonitor) AfterTextSearch(_ []string)                               {}
func (n *noopMonitor) AfterFiltering(_ int)                                     {}
func (n *noopMonitor) Finish(_ *core.SearchResponse)                            {}
