// Package funding defines the core types shared by the discovery, worker,
// resolver, dedup and storage subsystems of the funding crawler.
package funding
