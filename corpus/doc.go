// Package corpus stores documents in atomically committed, compressed batches.
//
// A corpus is a content version directory holding numbered batches:
//
//	<root>/<set>/<content:5>/<batch:4>/data.jl.zst
//	<root>/<set>/<content:5>/<batch:4>/stats.json
//
// Each payload line is one JSON-encoded Document. A batch becomes visible to
// readers when its payload is renamed into the batch directory; stats.json is
// written before that rename, so every committed batch has its statistics.
// Payloads are staged as hidden temp files in the content directory, which
// readers never scan.
//
// Writing:
//
//	s, err := corpus.Open("data/documents", corpus.WithDocumentSet("trigrams"))
//	res, err := s.AddDocuments(ctx, corpus.NewSliceSource(docs))
//
// Reading:
//
//	s, err := corpus.Load("data/documents", corpus.WithDocumentSet("trigrams"))
//	for sentence, err := range s.Sentences(corpus.All()) {
//		...
//	}
package corpus
