package pipeline

// NoteInput is a raw note handed to the pipeline.
type NoteInput struct {
	// ID is a unique, stable identifier for the note (e.g., its vault
	// path).
	ID string `json:"id"`

	// Content is the raw markdown content.
	Content string `json:"content"`

	// Metadata holds caller-supplied note attributes carried into the
	// vector store.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IngestResult is the outcome of IngestNote.
type IngestResult struct {
	OperationID string   `json:"operation_id"`
	Success     bool     `json:"success"`
	NoteID      string   `json:"note_id,omitempty"`
	Content     string   `json:"content,omitempty"`
	WordCount   int      `json:"word_count,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// IndexResult is the outcome of IndexNote.
type IndexResult struct {
	OperationID string `json:"operation_id"`
	Success     bool   `json:"success"`
	NoteID      string `json:"note_id,omitempty"`
	Dimensions  int    `json:"dimensions,omitempty"`
	TokensUsed  int    `json:"tokens_used,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Source is one piece of evidence backing an answer.
type Source struct {
	NoteID  string  `json:"note_id"`
	Score   float32 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Evidence collects the sources an answer was built from.
type Evidence struct {
	Sources []Source `json:"sources"`
}

// QueryResult is the outcome of QueryAgent.
type QueryResult struct {
	OperationID       string   `json:"operation_id"`
	Success           bool     `json:"success"`
	Answer            string   `json:"answer,omitempty"`
	Confidence        float64  `json:"confidence"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
	Evidence          Evidence `json:"evidence"`
	TokensUsed        int      `json:"tokens_used,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// RollbackResult is the outcome of RollbackOperation.
type RollbackResult struct {
	OperationID string `json:"operation_id"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// DeleteResult is the outcome of DeleteNote.
type DeleteResult struct {
	OperationID string `json:"operation_id"`
	Success     bool   `json:"success"`
	NoteID      string `json:"note_id,omitempty"`
	Deleted     bool   `json:"deleted"`
	Error       string `json:"error,omitempty"`
}
