// Package ober is a file-system-backed, append-only artifact store for a
// token and word sense embedding pipeline.
//
// Every artifact lives in a monotonically versioned directory. A workspace
// fixes the conventional layout of the tiers:
//
//	<dir>/documents/<set>/<content:5>/<batch:4>/data.jl.zst   corpus batches
//	<dir>/tokens/<content:5>/counts.vocab                     token vocabulary
//	<dir>/tokens/<content:5>/vectors/<vv:4>/vectors.npy       token vectors
//	<dir>/tokens/<content:5>/graphs/<gv:4>/graph.dt           similarity graph
//	<dir>/senses/clusters/<v:5>/senses.clusters               sense clusters
//	<dir>/senses/<content:5>/inventory.vocab                  sense vocabulary
//
// Writers make a version visible only once it is complete: files are written
// to temp files and renamed into place, and readers resolving "latest" pass
// over versions whose artifact never landed.
//
// # Quick Start
//
//	ws, _ := ober.Open("./data", ober.WithLogger(ober.NewTextLogger(slog.LevelInfo)))
//	res, _ := ws.AddDocuments(ctx, "news", corpus.NewLineSource(os.Stdin, nil))
//	tokens, _, _ := ws.UpdateTokens(ctx, "news", 5, nil)
//	loc, _, _ := ws.ExportGraph(ctx, dictionary.LoadOptions{})
//	run, _ := ws.Cluster(ctx, sense.NewRunner("java", []string{"-jar", "cw.jar"}), loc)
//	senses, _, _ := ws.PoolSenses(dictionary.LoadOptions{}, run.ClusterVersion)
//
// The packages underneath can be used on their own: version for the
// directory primitive, corpus for batched documents, dictionary for symbol
// tables with vectors, graph for the similarity graph, sense for the sense
// tier and blobstore for publishing versions to object storage.
package ober
