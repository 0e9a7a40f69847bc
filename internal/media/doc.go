// Package media defines the domain types and extractor contract shared by
// the catalog, executor, and transport layers.
package media
