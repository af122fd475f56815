// Package extract turns fetched HTML into candidate links, readable text and
// article metadata. It is the link extractor shared by discovery, the worker
// pool and the entity resolver.
package extract
