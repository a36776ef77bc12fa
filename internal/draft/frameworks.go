package draft

import (
	"github.com/warmline/internal/score"
)

// toneContract is the fixed voice every generated reply must follow.
const toneContract = `Voice rules for every variant:
- Short sentences. Contractions. Write like a person typing on their phone.
- No corporate phrasing, no formal sign-offs, no "I hope this finds you well".
- At most ONE question per message.
- 1 to 4 sentences per variant, never more.`

// bannedVocabulary is a closed list of words and phrases the engine must not
// use. Applied as an instruction to the generating engine, not as a post-hoc
// filter, so the engine rewrites around them instead of leaving holes.
var bannedVocabulary = []string{
	"delve", "leverage", "synergy", "streamline", "seamless", "robust",
	"game-changer", "unlock", "elevate", "empower", "supercharge",
	"cutting-edge", "revolutionize", "transformative", "holistic",
	"circle back", "touch base", "reach out", "align on", "value proposition",
	"I hope this message finds you well", "I wanted to follow up",
	"just checking in", "per my last message", "at your earliest convenience",
}

// stageFrameworks describes the messaging framework for each conversation
// stage. The engine auto-detects the stage from the conversation itself.
const stageFrameworks = `Detect the conversation stage and use the matching framework:

FIRST CONTACT (no prior reply from the contact): four-part opener — a personal hook about them, the area of shared interest, a consent-to-continue ask, and a P.S. with a personal touch.

NURTURING (they replied, relationship building): acknowledge what they said, contribute something useful, explore with one open question.

DISCOVERY (they are engaged, qualifying): situation-problem-implication-need-payoff questioning; one question at a time, building on their last answer.

STALE (no response to the user's last message): a labelled follow-up ("2nd note"), a soft "bad timing?" opt-out, or a value-add share. Never guilt, never pressure.

TRANSITION TO CALL: only once the contact has disclosed a specific pain AND has received at least one piece of value from the user. Frame it as "based on what you told me". If those two conditions are not met in the conversation, do NOT propose a call.`

// assertivenessFor returns the assertiveness directive for a warmth band.
// The colder the thread, the less the drafts may ask for.
func assertivenessFor(band string) string {
	switch band {
	case score.BandCool:
		return "Assertiveness: soft. Ask gentle questions about pains or annoyances in their work. Still no pitch and no offer."
	case score.BandWarm:
		return "Assertiveness: moderate. Ask sharper operational questions about how they handle the problem today. No pitch yet."
	case score.BandHot:
		return "Assertiveness: confident. You may pitch, backed by a short concrete case or result. Keep it to one sentence of proof."
	case score.BandOnFire:
		return "Assertiveness: direct. Make a clear call-to-action toward a next step. Be specific about when and what."
	default: // cold, or never scored
		return "Assertiveness: pure curiosity. Ask about them and their world. No offer of any kind, nothing to buy, nothing to book."
	}
}
