// Package graph exports nearest-neighbor similarity graphs of a dictionary in
// the binary adjacency format consumed by the external clustering job, and
// decodes that format, which cluster files share.
package graph
