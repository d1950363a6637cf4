package domain

// KnowledgeDocument is one entry of the medical reference index, keyed by
// condition name.
type KnowledgeDocument struct {
	Disease string `json:"disease"`
	Content string `json:"content"`
}
