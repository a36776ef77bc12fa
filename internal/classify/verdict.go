package classify

import (
	"fmt"

	"github.com/warmline/internal/thread"
)

// Verdict is the strict response contract of the classification engine.
type Verdict struct {
	Category        thread.Category `json:"category"`
	IsSelling       bool            `json:"isSelling"`
	IsPartner       bool            `json:"isPartner"`
	Intent          string          `json:"intent"`
	SuggestedStatus thread.Status   `json:"suggestedStatus"`
}

// statuses the engine is allowed to suggest
var allowedStatuses = map[thread.Status]bool{
	thread.StatusNeedsReply: true,
	thread.StatusWaiting:    true,
	thread.StatusArchived:   true,
	thread.StatusUnread:     true,
	// qualified is accepted on input only so it can be remapped; scoring owns it
	thread.StatusQualified: true,
}

// Validate checks the verdict against the contract and applies the one
// remapping invariant: the engine must never set qualified, and any attempt is
// rewritten to needs-reply. Qualification belongs to the scoring path alone.
func (v *Verdict) Validate() error {
	if !thread.ValidCategory(v.Category) {
		return fmt.Errorf("unknown category %q", v.Category)
	}
	if v.SuggestedStatus == "" {
		v.SuggestedStatus = thread.StatusNeedsReply
	}
	if !allowedStatuses[v.SuggestedStatus] {
		return fmt.Errorf("unknown suggested status %q", v.SuggestedStatus)
	}
	if v.SuggestedStatus == thread.StatusQualified {
		v.SuggestedStatus = thread.StatusNeedsReply
	}
	return nil
}
