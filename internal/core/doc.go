// Package core provides the package-resolution and incremental caching
// primitives of the asset packager.
//
// # Design Principles
//
//  1. Freshness is recoverable from the filesystem alone (modification times);
//     there is no index or metadata file.
//  2. Path ordering is deterministic: sorted within a glob, pattern order across globs.
//  3. Persisted files only become visible once fully materialized.
//
// # Core Types
//
// GlobResolver: expands one pattern into sorted file paths.
// Registry: the immutable name -> Package mapping for one artifact type.
// StalenessOracle: decides whether a package must be rebuilt.
// VariantPlanner: decides which variants a package produces.
// ArtifactWriter: persists a variant and its gzip sibling with a fixed mtime.
package core
