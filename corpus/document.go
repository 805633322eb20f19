package corpus

// Document is one corpus record.
type Document struct {
	Title      string      `json:"title"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is an ordered list of sentences.
type Paragraph struct {
	Sentences []Sentence `json:"sentences"`
}

// Sentence is an ordered list of tokens.
type Sentence struct {
	Tokens []string `json:"tokens"`
}

// NumSentences returns the number of sentences across all paragraphs.
func (d Document) NumSentences() int {
	n := 0
	for _, p := range d.Paragraphs {
		n += len(p.Sentences)
	}
	return n
}

// NumTokens returns the number of tokens across all sentences.
func (d Document) NumTokens() int {
	n := 0
	for _, p := range d.Paragraphs {
		for _, s := range p.Sentences {
			n += len(s.Tokens)
		}
	}
	return n
}

// BatchStats is the statistics sidecar of a committed batch.
type BatchStats struct {
	TotalSentences int `json:"total_sentences"`
	Documents      int `json:"documents"`
}
