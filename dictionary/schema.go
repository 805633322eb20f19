package dictionary

const (
	// PadSymbol pads token sequences.
	PadSymbol = "<PAD>"
	// UnknownSymbol is what unknown symbols encode to.
	UnknownSymbol = "<UNK>"

	// ReservedFrequency is the synthetic count given to reserved symbols so
	// frequency filtering never drops them.
	ReservedFrequency = 1000

	// VectorsFile is the vector matrix name inside a vectors version.
	VectorsFile = "vectors.npy"
	// VectorsDir holds the vectors version axis inside a content version.
	VectorsDir = "vectors"
)

// Schema describes one kind of dictionary.
type Schema struct {
	// Name is used in logs.
	Name string
	// VocabFile is the vocabulary file name inside a content version.
	VocabFile string
	// Frequencies selects the "symbol\tfrequency" line format.
	Frequencies bool
	// Reserved symbols are registered first, in order.
	Reserved []string
	// Unknown is the reserved symbol unknown lookups encode to.
	Unknown string
}

var (
	// TokenSchema is the word token dictionary.
	TokenSchema = Schema{
		Name:        "tokens",
		VocabFile:   "counts.vocab",
		Frequencies: true,
		Reserved:    []string{PadSymbol, UnknownSymbol},
		Unknown:     UnknownSymbol,
	}

	// SenseSchema is the word sense dictionary. Keys look like "token#n".
	SenseSchema = Schema{
		Name:      "senses",
		VocabFile: "inventory.vocab",
		Reserved:  []string{UnknownSymbol},
		Unknown:   UnknownSymbol,
	}
)
