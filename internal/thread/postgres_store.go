package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool. History tables are
// insert-only at the SQL level; nothing in this store issues UPDATE or DELETE
// against them except the cascade delete of the owning thread.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore { return &PostgresStore{pool: pool} }

const threadColumns = `
	id, external_id, participant_id, participant_name, participant_headline,
	profile_url, avatar_url, last_message, last_message_at, last_message_direction,
	unread_count, status, category, is_selling, is_partner, intent, classified_at,
	manual_classification, classification_note, wamp_score, qualification_data,
	is_qualified, enrichment_data, post_data, is_snoozed, snooze_until,
	created_at, updated_at`

func (s *PostgresStore) CreateThread(ctx context.Context, t *Thread) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusUnread
	}
	qd, ed, pd, err := marshalThreadJSON(t)
	if err != nil {
		return err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO threads (
			id, external_id, participant_id, participant_name, participant_headline,
			profile_url, avatar_url, last_message, last_message_at, last_message_direction,
			unread_count, status, category, is_selling, is_partner, intent, classified_at,
			manual_classification, classification_note, wamp_score, qualification_data,
			is_qualified, enrichment_data, post_data, is_snoozed, snooze_until
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		RETURNING created_at, updated_at
	`,
		t.ID, t.ExternalID, t.ParticipantID, t.ParticipantName, t.ParticipantHeadline,
		t.ProfileURL, t.AvatarURL, t.LastMessage, nullTime(t.LastMessageAt), string(t.LastMessageDirection),
		t.UnreadCount, string(t.Status), string(t.Category), t.IsSelling, t.IsPartner, t.Intent, t.ClassifiedAt,
		t.ManualClassification, t.ClassificationNote, t.WampScore, qd,
		t.IsQualified, ed, pd, t.IsSnoozed, t.SnoozeUntil,
	)
	return row.Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (s *PostgresStore) UpdateThread(ctx context.Context, t *Thread) error {
	qd, ed, pd, err := marshalThreadJSON(t)
	if err != nil {
		return err
	}
	// full-record overwrite, matching InMemoryStore: every mutable column is
	// written, so a caller's change to any field survives the round trip
	row := s.pool.QueryRow(ctx, `
		UPDATE threads SET
			external_id=$1, participant_id=$2, participant_name=$3, participant_headline=$4,
			profile_url=$5, avatar_url=$6,
			last_message=$7, last_message_at=$8, last_message_direction=$9, unread_count=$10,
			status=$11, category=$12, is_selling=$13, is_partner=$14, intent=$15, classified_at=$16,
			manual_classification=$17, classification_note=$18, wamp_score=$19,
			qualification_data=$20, is_qualified=$21, enrichment_data=$22, post_data=$23,
			is_snoozed=$24, snooze_until=$25, updated_at=now()
		WHERE id=$26
		RETURNING updated_at
	`,
		t.ExternalID, t.ParticipantID, t.ParticipantName, t.ParticipantHeadline,
		t.ProfileURL, t.AvatarURL,
		t.LastMessage, nullTime(t.LastMessageAt), string(t.LastMessageDirection), t.UnreadCount,
		string(t.Status), string(t.Category), t.IsSelling, t.IsPartner, t.Intent, t.ClassifiedAt,
		t.ManualClassification, t.ClassificationNote, t.WampScore,
		qd, t.IsQualified, ed, pd,
		t.IsSnoozed, t.SnoozeUntil, t.ID,
	)
	if err := row.Scan(&t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetThread(ctx context.Context, id string) (*Thread, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+threadColumns+` FROM threads WHERE id=$1`, id)
	t, err := scanThread(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) ListThreads(ctx context.Context, f ListFilter) ([]*Thread, error) {
	query := `SELECT` + threadColumns + ` FROM threads WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if f.Category != "" {
		args = append(args, string(f.Category))
		query += fmt.Sprintf(" AND category=$%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(" AND (participant_name ILIKE $%d OR last_message ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY last_message_at DESC NULLS LAST"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanThreads(rows)
}

func (s *PostgresStore) ListUnclassified(ctx context.Context, limit int) ([]*Thread, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+threadColumns+` FROM threads
		WHERE classified_at IS NULL AND status <> 'archived'
		ORDER BY last_message_at ASC NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanThreads(rows)
}

func (s *PostgresStore) DeleteThread(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, table := range []string{"messages", "score_history", "draft_history"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE thread_id=$1`, id); err != nil {
			return err
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM threads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, thread_id, direction, sender, content, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.ThreadID, string(m.Direction), m.Sender, m.Content, m.SentAt)
	return err
}

func (s *PostgresStore) RecentMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	// limit <= 0 means the whole thread; NULLIF turns 0 into LIMIT NULL
	if limit < 0 {
		limit = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, direction, sender, content, sent_at FROM (
			SELECT id, thread_id, direction, sender, content, sent_at
			FROM messages WHERE thread_id=$1
			ORDER BY sent_at DESC LIMIT NULLIF($2, 0)
		) recent ORDER BY sent_at ASC
	`, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*Message, 0)
	for rows.Next() {
		var m Message
		var direction string
		if err := rows.Scan(&m.ID, &m.ThreadID, &direction, &m.Sender, &m.Content, &m.SentAt); err != nil {
			return nil, err
		}
		m.Direction = Direction(direction)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountMessages(ctx context.Context, threadID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE thread_id=$1`, threadID).Scan(&n)
	return n, err
}

func (s *PostgresStore) AppendScoreEntry(ctx context.Context, e *ScoreHistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	breakdown, err := json.Marshal(e.Breakdown)
	if err != nil {
		return err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO score_history (id, thread_id, total, band, breakdown)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, e.ID, e.ThreadID, e.Total, e.Band, breakdown)
	return row.Scan(&e.CreatedAt)
}

func (s *PostgresStore) ListScoreHistory(ctx context.Context, threadID string) ([]*ScoreHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, total, band, breakdown, created_at
		FROM score_history WHERE thread_id=$1 ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*ScoreHistoryEntry, 0)
	for rows.Next() {
		var e ScoreHistoryEntry
		var breakdown []byte
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.Total, &e.Band, &breakdown, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(breakdown, &e.Breakdown); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendDraftEntry(ctx context.Context, e *DraftHistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO draft_history (id, thread_id, instruction, variants)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, e.ID, e.ThreadID, e.Instruction, variants)
	return row.Scan(&e.CreatedAt)
}

func (s *PostgresStore) ListDraftHistory(ctx context.Context, threadID string) ([]*DraftHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, instruction, variants, used_variant_index, created_at
		FROM draft_history WHERE thread_id=$1 ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*DraftHistoryEntry, 0)
	for rows.Next() {
		var e DraftHistoryEntry
		var variants []byte
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.Instruction, &variants, &e.UsedVariantIndex, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(variants, &e.Variants); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetDraftVariantUsed(ctx context.Context, entryID string, variantIndex int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE draft_history SET used_variant_index=$1
		WHERE id=$2 AND $1 >= 0 AND $1 < jsonb_array_length(variants)
	`, variantIndex, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// Distinguish a missing entry from an out-of-range index so the HTTP
	// layer maps them to 404 and 400 respectively.
	var n int
	err = s.pool.QueryRow(ctx, `SELECT jsonb_array_length(variants) FROM draft_history WHERE id=$1`, entryID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidID
}

func (s *PostgresStore) RecentManualCorrections(ctx context.Context, limit int) ([]*Thread, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+threadColumns+` FROM threads
		WHERE manual_classification = true AND classified_at IS NOT NULL
		ORDER BY classified_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanThreads(rows)
}

func (s *PostgresStore) CreateAction(ctx context.Context, a *Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO actions (id, thread_id, action_type, target_id, target_name, payload, status, approval_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at
	`, a.ID, a.ThreadID, string(a.Type), a.TargetID, a.TargetName, a.Payload, string(a.Status), a.ApprovalID)
	return row.Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *PostgresStore) UpdateAction(ctx context.Context, a *Action) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE actions SET status=$1, approval_id=$2, error=$3, executed_at=$4, updated_at=now()
		WHERE id=$5
		RETURNING updated_at
	`, string(a.Status), a.ApprovalID, a.Error, a.ExecutedAt, a.ID)
	if err := row.Scan(&a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetAction(ctx context.Context, id string) (*Action, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, thread_id, action_type, target_id, target_name, payload, status,
		       approval_id, coalesce(error,''), executed_at, created_at, updated_at
		FROM actions WHERE id=$1
	`, id)
	a, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) ListActions(ctx context.Context, status ActionStatus, limit int) ([]*Action, error) {
	query := `
		SELECT id, thread_id, action_type, target_id, target_name, payload, status,
		       approval_id, coalesce(error,''), executed_at, created_at, updated_at
		FROM actions`
	args := []any{}
	if status != "" {
		args = append(args, string(status))
		query += " WHERE status=$1"
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*Action, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func marshalThreadJSON(t *Thread) (qd, ed, pd []byte, err error) {
	if t.QualificationData != nil {
		if qd, err = json.Marshal(t.QualificationData); err != nil {
			return
		}
	}
	if t.EnrichmentData != nil {
		if ed, err = json.Marshal(t.EnrichmentData); err != nil {
			return
		}
	}
	if t.PostData != nil {
		pd, err = json.Marshal(t.PostData)
	}
	return
}

func scanThreads(rows pgx.Rows) ([]*Thread, error) {
	out := make([]*Thread, 0)
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanThread(scanner interface{ Scan(dest ...any) error }) (*Thread, error) {
	var t Thread
	var status, category, direction string
	var lastMessageAt *time.Time
	var qd, ed, pd []byte
	err := scanner.Scan(
		&t.ID, &t.ExternalID, &t.ParticipantID, &t.ParticipantName, &t.ParticipantHeadline,
		&t.ProfileURL, &t.AvatarURL, &t.LastMessage, &lastMessageAt, &direction,
		&t.UnreadCount, &status, &category, &t.IsSelling, &t.IsPartner, &t.Intent, &t.ClassifiedAt,
		&t.ManualClassification, &t.ClassificationNote, &t.WampScore, &qd,
		&t.IsQualified, &ed, &pd, &t.IsSnoozed, &t.SnoozeUntil,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.Category = Category(category)
	t.LastMessageDirection = Direction(direction)
	if lastMessageAt != nil {
		t.LastMessageAt = *lastMessageAt
	}
	if len(qd) > 0 {
		t.QualificationData = &ScoreBreakdown{}
		if err := json.Unmarshal(qd, t.QualificationData); err != nil {
			return nil, err
		}
	}
	if len(ed) > 0 {
		t.EnrichmentData = &Enrichment{}
		if err := json.Unmarshal(ed, t.EnrichmentData); err != nil {
			return nil, err
		}
	}
	if len(pd) > 0 {
		if err := json.Unmarshal(pd, &t.PostData); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func scanAction(scanner interface{ Scan(dest ...any) error }) (*Action, error) {
	var a Action
	var actionType, status string
	err := scanner.Scan(
		&a.ID, &a.ThreadID, &actionType, &a.TargetID, &a.TargetName, &a.Payload, &status,
		&a.ApprovalID, &a.Error, &a.ExecutedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Type = ActionType(actionType)
	a.Status = ActionStatus(status)
	return &a, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
