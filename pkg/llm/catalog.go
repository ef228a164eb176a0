package llm

// Model is a static catalog entry a user can chat with.
type Model struct {
	ID               string `json:"id" yaml:"id"`
	DisplayName      string `json:"display_name" yaml:"display_name"`
	MaxContextTokens int    `json:"max_context_tokens" yaml:"max_context_tokens"`
	Developer        string `json:"developer" yaml:"developer"`
}

// DefaultModelID is selected for every new session.
const DefaultModelID = "llama3-70b-8192"

// catalog is ordered the way the model picker shows it.
var catalog = []Model{
	{ID: "gemma2-9b-it", DisplayName: "Gemma2-9b-it", MaxContextTokens: 8192, Developer: "Google"},
	{ID: "llama-3.3-70b-versatile", DisplayName: "LLaMA3.3-70b-versatile", MaxContextTokens: 128000, Developer: "Meta"},
	{ID: "llama-3.1-8b-instant", DisplayName: "LLaMA3.1-8b-instant", MaxContextTokens: 128000, Developer: "Meta"},
	{ID: "llama3-70b-8192", DisplayName: "LLaMA3-70b-8192", MaxContextTokens: 8192, Developer: "Meta"},
	{ID: "llama3-8b-8192", DisplayName: "LLaMA3-8b-8192", MaxContextTokens: 8192, Developer: "Meta"},
}

// Catalog returns a copy of the bundled model catalog in display order.
func Catalog() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel finds a catalog entry by id.
func LookupModel(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// DefaultModel returns the catalog entry for DefaultModelID.
func DefaultModel() Model {
	m, _ := LookupModel(DefaultModelID)
	return m
}

// ModelIndex returns the position of id in the catalog, or -1.
func ModelIndex(id string) int {
	for i, m := range catalog {
		if m.ID == id {
			return i
		}
	}
	return -1
}
