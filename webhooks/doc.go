// Package webhooks delivers signed status-change notifications to client
// endpoints.
//
// Delivery is gated: transitions that park a record in an awaiting-review
// status for a manual-review client produce no notification until a reviewer
// finalizes the record. Failed deliveries are retried on a fixed interval
// against a bounded attempt budget; exhausting the budget never alters the
// verification record itself.
package webhooks
