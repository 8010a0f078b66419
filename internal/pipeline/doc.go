// Package pipeline orchestrates vertex fits over clusters of lines.
//
// It owns the host-side concerns the vertex package leaves to its caller:
// splitting large clusters into lane-sized work groups, running groups and
// clusters concurrently, joining the workers before partial candidates are
// merged, and turning solver outcomes into per-cluster results. Which lines
// form a cluster is decided upstream.
package pipeline
