// Package draft orchestrates reply drafting: it layers a tone contract, a
// banned-vocabulary instruction, stage-dependent messaging frameworks and a
// warmth-keyed assertiveness directive into one prompt, and persists the
// generated variants as append-only draft history.
package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/score"
	"github.com/warmline/internal/thread"
)

type Config struct {
	Variants       int // variants requested per generation
	RecentMessages int // conversation context size
}

func (c Config) withDefaults() Config {
	if c.Variants <= 0 {
		c.Variants = 3
	}
	if c.RecentMessages <= 0 {
		c.RecentMessages = 15
	}
	return c
}

// draftResponse is the strict response contract of the drafting engine.
type draftResponse struct {
	Variants []string `json:"variants"`
}

type Drafter struct {
	store  thread.Store
	engine engine.Client
	cfg    Config
}

func New(store thread.Store, eng engine.Client, cfg Config) *Drafter {
	return &Drafter{store: store, engine: eng, cfg: cfg.withDefaults()}
}

// GenerateDrafts produces reply variants for a thread and appends them as a
// new draft history entry. No entry is written for a failed attempt. The
// optional instruction is free-text steering from the caller.
func (d *Drafter) GenerateDrafts(ctx context.Context, threadID, instruction string) (*thread.DraftHistoryEntry, error) {
	if threadID == "" {
		return nil, fmt.Errorf("draft: %w: empty thread id", thread.ErrInvalidID)
	}
	t, err := d.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("draft: load thread %s: %w", threadID, err)
	}
	messages, err := d.store.RecentMessages(ctx, t.ID, d.cfg.RecentMessages)
	if err != nil {
		return nil, fmt.Errorf("draft: load messages for %s: %w", t.ID, err)
	}

	prompt := BuildDirective(t, messages, instruction, d.cfg.Variants)
	var resp draftResponse
	if err := d.engine.GenerateStructured(ctx, prompt, &resp); err != nil {
		return nil, fmt.Errorf("draft: engine for %s: %w", t.ID, err)
	}
	variants := cleanVariants(resp.Variants, d.cfg.Variants)
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: draft for %s: engine returned no variants", engine.ErrUpstream, t.ID)
	}

	entry := &thread.DraftHistoryEntry{
		ThreadID:    t.ID,
		Instruction: instruction,
		Variants:    variants,
	}
	if err := d.store.AppendDraftEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("draft: append history for %s: %w", t.ID, err)
	}

	log.Info().Str("thread_id", t.ID).Int("variants", len(variants)).Msg("drafts generated")
	return entry, nil
}

// MarkVariantUsed records which variant was actually sent, on the history
// entry itself. The entry's variants are never rewritten.
func (d *Drafter) MarkVariantUsed(ctx context.Context, entryID string, variantIndex int) error {
	return d.store.SetDraftVariantUsed(ctx, entryID, variantIndex)
}

// BuildDirective assembles the full drafting directive for a thread. Exported
// so the directive layering is testable without an engine call.
func BuildDirective(t *thread.Thread, messages []*thread.Message, instruction string, variants int) string {
	var b strings.Builder
	b.WriteString("Draft replies the user could send in this conversation.\n\n")
	b.WriteString(toneContract)
	b.WriteString("\n\nNever use any of these words or phrases: ")
	b.WriteString(strings.Join(bannedVocabulary, "; "))
	b.WriteString(".\n\n")
	b.WriteString(stageFrameworks)
	b.WriteString("\n\n")
	b.WriteString(assertivenessFor(bandOf(t)))
	b.WriteString("\n")

	if t.QualificationData != nil && t.QualificationData.SuggestedBusiness != "" {
		b.WriteString(fmt.Sprintf("\nBusiness context: this contact maps to the %q business line; keep any substance relevant to it.\n", t.QualificationData.SuggestedBusiness))
	}
	if instruction != "" {
		b.WriteString("\nCaller steering: " + instruction + "\n")
	}

	b.WriteString(fmt.Sprintf("\nContact: %s", t.ParticipantName))
	if t.ParticipantHeadline != "" {
		b.WriteString(" — " + t.ParticipantHeadline)
	}
	b.WriteString("\n\nConversation, oldest first:\n")
	for _, m := range messages {
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", m.Direction, m.Sender, m.Content))
	}

	b.WriteString(fmt.Sprintf("\nRespond with ONLY a JSON object, no prose and no markdown fences:\n{\"variants\": [%s]}\n", strings.TrimSuffix(strings.Repeat("\"...\", ", variants), ", ")))
	b.WriteString(fmt.Sprintf("Return exactly %d variants.", variants))
	return b.String()
}

// bandOf maps the thread's current score to a warmth band; an unscored thread
// is treated as cold.
func bandOf(t *thread.Thread) string {
	if t.WampScore == nil {
		return score.BandCold
	}
	return score.BandFor(*t.WampScore)
}

func cleanVariants(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}
