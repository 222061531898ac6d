package types

import "time"

// IndexMetadata describes a generated master index.
type IndexMetadata struct {
	GeneratedAt     time.Time `json:"generatedAt"`
	TotalGroups     int       `json:"totalGroups"`
	EmbeddingModel  string    `json:"embeddingModel"`
	TotalAPICalls   int64     `json:"totalApiCalls"`
	TotalTokensUsed int64     `json:"totalTokensUsed"`
}

// GroupEntry summarizes one group's chunk file in the master index.
type GroupEntry struct {
	File         string    `json:"file"`
	PatternCount int       `json:"patternCount"`
	ExampleCount int       `json:"exampleCount"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// MasterIndex maps every item ID to its owning group. It is a pure function
// of the current set of chunk files: rebuilt wholesale on every run, never
// hand-edited, never incrementally patched.
type MasterIndex struct {
	Metadata    IndexMetadata         `json:"metadata"`
	Groups      map[string]GroupEntry `json:"groups"`
	ItemToGroup map[string]string     `json:"itemToGroup"`
}

// NewMasterIndex creates an empty master index.
func NewMasterIndex(model string) *MasterIndex {
	return &MasterIndex{
		Metadata: IndexMetadata{
			EmbeddingModel: model,
		},
		Groups:      make(map[string]GroupEntry),
		ItemToGroup: make(map[string]string),
	}
}
