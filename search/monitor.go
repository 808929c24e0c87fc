package search

import "github.com/poiesic/docflow/storage"

// Monitor provides hooks to observe the search process.
type Monitor interface {
	Start(query string)
	AfterSemanticSearch(matches []storage.SearchResult)
	Hit(result Result)
	Finish(results []Result)
}

type noopMonitor struct{}

var _ Monitor = noopMonitor{}

func (noopMonitor) Start(string)                               {}
func (noopMonitor) AfterSemanticSearch([]storage.SearchResult) {}
func (noopMonitor) Hit(Result)                                 {}
func (noopMonitor) Finish([]Result)                            {}
