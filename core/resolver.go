package core

import "fmt"

// ResolveStatus maps a provider's raw result to the next workflow status.
//
// When the client does not require manual review the provider result passes
// through unchanged. When review is required, a final provider verdict is
// parked in the matching provider_* awaiting-review status; pending and
// unresolved results do not require review and pass through either way.
//
// The mapping is deterministic and has no side effects.
func ResolveStatus(providerResult Status, needsManualReview bool) (Status, error) {
	if !providerResult.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, providerResult)
	}
	if providerResult.AwaitingReview() {
		return "", fmt.Errorf("%w: provider result %q is a review state", ErrInvalidStatus, providerResult)
	}
	if !needsManualReview {
		return providerResult, nil
	}
	switch providerResult {
	case StatusApproved:
		return StatusProviderApproved, nil
	case StatusRejected:
		return StatusProviderRejected, nil
	case StatusError:
		return StatusProviderError, nil
	default:
		return providerResult, nil
	}
}
