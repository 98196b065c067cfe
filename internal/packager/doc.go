// Package packager orchestrates packaging passes over a loaded manifest.
//
// A Packager is built from resolved settings and owns one registry per
// artifact type. It answers on-demand requests (IndividualURLs, Pack,
// PackTemplates) and runs incremental precache passes (PrecacheAll), where
// each selected package moves through an explicit, validated state machine
// and stale packages are rendered and persisted with their gzip siblings.
//
// Holder is the long-lived owner for servers: it builds the Packager lazily
// and rebuilds it when the manifest changes.
package packager
