// Package inbound guards the provider callback surface.
//
// Providers redeliver callbacks until they see a success response, so every
// callback is admitted through an insert-or-detect-duplicate step keyed by
// "{platform}:{type}:{requestId}" before it may touch workflow state. A
// duplicate is acknowledged and discarded, never treated as an error.
package inbound
