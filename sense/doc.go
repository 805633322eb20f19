// Package sense builds the word sense tier on top of the token tier.
//
// Word sense induction happens in an external clustering program that reads a
// token similarity graph and writes one cluster record per induced sense, in
// the record format of package graph with the sense number in the marker
// field. Runner invokes that program and commits its output into a
// ClusterStore; Pool turns a committed cluster file into a sense dictionary
// whose vectors are weighted averages of the member token vectors.
package sense
