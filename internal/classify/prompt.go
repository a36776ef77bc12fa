package classify

import (
	"fmt"
	"strings"

	"github.com/warmline/internal/thread"
)

const classificationInstructions = `You classify one inbound conversation thread from a professional network inbox.

Decision rules:
1. isSelling is true ONLY when the other party is pitching something for the user to buy. If the user is the one inquiring about the other party's product or service, isSelling is false.
2. Recruiters and pure networking requests are NEVER selling, whatever their pitch sounds like.
3. isPartner is true ONLY for established or personal relationships. Cold outreach and purely transactional contacts are never partners.
4. suggestedStatus defaults to "needs-reply". Use "waiting" only when the last message is unambiguously from the user's side. Use "archived" only for spam or a pure pitch with no value to the user.
5. NEVER output "qualified" as a status. Qualification is decided elsewhere.

Categories: sales_inquiry, networking, job_opportunity, partnership, recruiter, spam, support, personal, other.

Respond with ONLY a JSON object, no prose and no markdown fences:
{"category": "...", "isSelling": false, "isPartner": false, "intent": "one short sentence describing what the contact wants", "suggestedStatus": "needs-reply"}`

// buildPrompt renders the conversation context payload for one thread,
// optionally prefixed with prior manually corrected classifications as
// steering examples.
func buildPrompt(t *thread.Thread, messages []*thread.Message, totalMessages int, corrections []*thread.Thread) string {
	var b strings.Builder
	b.WriteString(classificationInstructions)
	b.WriteString("\n\n")

	if len(corrections) > 0 {
		b.WriteString("Prior classifications corrected by the user; follow their judgment on similar threads:\n")
		for _, c := range corrections {
			b.WriteString(fmt.Sprintf("- %s (%s): category=%s", c.ParticipantName, c.ParticipantHeadline, c.Category))
			if c.ClassificationNote != "" {
				b.WriteString(" — " + c.ClassificationNote)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Thread:\n")
	b.WriteString(fmt.Sprintf("Participant: %s\n", t.ParticipantName))
	if t.ParticipantHeadline != "" {
		b.WriteString(fmt.Sprintf("Headline: %s\n", t.ParticipantHeadline))
	}
	b.WriteString(fmt.Sprintf("Last message sent by: %s\n", lastSender(t)))
	b.WriteString(fmt.Sprintf("Total messages in thread: %d\n", totalMessages))
	b.WriteString(fmt.Sprintf("Most recent %d messages, oldest first:\n", len(messages)))
	for _, m := range messages {
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", m.Direction, m.Sender, m.Content))
	}
	return b.String()
}

func lastSender(t *thread.Thread) string {
	if t.LastMessageDirection == thread.DirectionOutgoing {
		return "the user"
	}
	return "the contact"
}
