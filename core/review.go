package core

import (
	"fmt"
	"strings"
	"time"
)

// ReviewDecision is a human reviewer's final call on a record parked in an
// awaiting-review status.
type ReviewDecision struct {
	Status   Status
	Notes    string
	Reviewer string
}

func (d ReviewDecision) Validate() error {
	if d.Status != StatusApproved && d.Status != StatusRejected {
		return fmt.Errorf("%w: review decision must be approved or rejected, got %q", ErrInvalidStatus, d.Status)
	}
	if strings.TrimSpace(d.Notes) == "" {
		return fmt.Errorf("core: review notes are required")
	}
	if strings.TrimSpace(d.Reviewer) == "" {
		return fmt.Errorf("core: reviewer is required")
	}
	return nil
}

// ApplyReview finalizes a record with the reviewer's decision.
//
// The record must be in an awaiting-review status; calling this on an already
// finalized record is a caller bug and is rejected with ErrNotAwaitingReview.
// The provider's original verdict is snapshotted into ProviderStatus exactly
// once: first write wins, later reviews never overwrite it. A reviewer may
// override the provider verdict in either direction.
func ApplyReview(record *VerificationRecord, decision ReviewDecision, now time.Time) error {
	if record == nil {
		return fmt.Errorf("core: verification record is required")
	}
	if err := decision.Validate(); err != nil {
		return err
	}
	if !record.Status.AwaitingReview() {
		return fmt.Errorf("%w: %s is %q", ErrNotAwaitingReview, record.ID, record.Status)
	}

	if record.ProviderStatus == "" {
		record.ProviderStatus = record.Status
	}

	reviewedAt := now.UTC()
	record.Status = decision.Status
	record.ReviewNotes = strings.TrimSpace(decision.Notes)
	record.ReviewedBy = strings.TrimSpace(decision.Reviewer)
	record.ReviewedAt = &reviewedAt
	record.UpdatedAt = reviewedAt
	return nil
}
