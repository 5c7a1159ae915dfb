package models

// Document is a single source file from the corpus. Year is parsed from the
// filename at ingestion time; 0 means the year is unknown.
type Document struct {
	Name string
	Year int
	Text string
}

// Chunk is the atomic retrieval unit. ID is sequential across the whole
// corpus and doubles as the vector row number and the metadata key.
type Chunk struct {
	ID         int
	Source     string
	ChunkIndex int
	Text       string
	Year       int
}

// ScoredChunk is a chunk paired with its search distance (smaller is closer).
type ScoredChunk struct {
	Chunk
	Distance float32
}

// Citation resolves one inline [n] marker to its source passage.
type Citation struct {
	Ref        int
	Source     string
	ChunkIndex int
}

// Answer is the result of answering a single question against retrieved
// chunks. Text may carry a failure sentinel; callers check it with the
// answerer's Failed helper rather than an error.
type Answer struct {
	Question  string
	Text      string
	Chunks    []ScoredChunk
	Citations []Citation
}
