package score

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/warmline/internal/thread"
)

const scoringInstructions = `You score how warm a professional-network conversation is as a potential lead, on a 0-100 scale built from three additive layers.

Layer 1 - deal qualification (0-35): business stage fit, whether the contact is a buyer rather than a competitor, and concrete pain or opportunity signal.
Layer 2 - conversational relevance (0-30): topical fit with the user's offering, openness and buying signals, engagement quality.
Layer 3 - behavioral readiness (0-35): curiosity and questioning, disclosure of need or pain, reciprocity and investment in the conversation, readiness to act.

Report each layer's subtotal; total = layer1 + layer2 + layer3. Band boundaries: cold 0-20, cool 21-40, warm 41-60, hot 61-80, on-fire 81-100.

Respond with ONLY a JSON object, no prose and no markdown fences:
{"total": 0, "band": "cold", "suggestedBusiness": "", "layer1": {"subtotal": 0, "signals": {}}, "layer2": {"subtotal": 0, "signals": {}}, "layer3": {"subtotal": 0, "signals": {}}, "summary": "two sentences on why", "messagingGuidance": "one sentence on how to message them next"}`

// BusinessLine describes one of the user's business units the engine may
// assign a contact to.
type BusinessLine struct {
	Name        string `koanf:"name" json:"name"`
	Description string `koanf:"description" json:"description"`
}

func buildPrompt(t *thread.Thread, messages []*thread.Message, posts []thread.Post, cfg Config) string {
	var b strings.Builder
	b.WriteString(scoringInstructions)
	b.WriteString("\n\n")

	if len(cfg.BusinessLines) > 0 {
		b.WriteString("Business lines to pick suggestedBusiness from:\n")
		for _, bl := range cfg.BusinessLines {
			b.WriteString(fmt.Sprintf("- %s: %s\n", bl.Name, bl.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Contact: %s", t.ParticipantName))
	if t.ParticipantHeadline != "" {
		b.WriteString(" — " + t.ParticipantHeadline)
	}
	b.WriteString("\n")
	if t.Category != "" {
		b.WriteString(fmt.Sprintf("Classified as: %s (%s)\n", t.Category, t.Intent))
	}

	if summary := enrichmentSummary(t.EnrichmentData); summary != "" {
		b.WriteString("Profile facts: " + summary + "\n")
	}

	if len(posts) > 0 {
		b.WriteString(fmt.Sprintf("\nRecent posts by the contact (%d):\n", len(posts)))
		for _, p := range posts {
			b.WriteString("- " + truncate(p.Content, cfg.PostTruncateChars) + "\n")
		}
	}

	b.WriteString("\nConversation, oldest first:\n")
	for _, m := range messages {
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", m.Direction, m.Sender, m.Content))
	}
	return b.String()
}

// enrichmentSummary compacts person/org facts into one line of context.
func enrichmentSummary(e *thread.Enrichment) string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 5)
	if e.Title != "" {
		parts = append(parts, e.Title)
	}
	if e.Company != "" {
		parts = append(parts, "at "+e.Company)
	}
	if e.Industry != "" {
		parts = append(parts, "industry: "+e.Industry)
	}
	if e.EmployeeCount > 0 {
		parts = append(parts, fmt.Sprintf("%d employees", e.EmployeeCount))
	}
	if e.RevenueMM > 0 {
		parts = append(parts, fmt.Sprintf("~$%.1fM revenue", e.RevenueMM))
	}
	return strings.Join(parts, ", ")
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
