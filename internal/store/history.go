package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

// Message is one stored conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore keeps per-session conversation history.
type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{DB: db}
}

// AddMessage stores a message once. Re-adding identical content for the same
// session and role is a no-op.
func (h *HistoryStore) AddMessage(ctx context.Context, session, role, content string) error {
	query := `INSERT OR IGNORE INTO messages (session, role, content, hash) VALUES (?, ?, ?, ?)`
	_, err := h.DB.ExecContext(ctx, query, session, role, content, hashOf(session, role, content))
	return err
}

// AddExchange stores a question and its answer. When the latest exchange of
// the session is the same question, the call is a retry and only the answer is
// replaced. A question asked again later is appended as a new exchange.
func (h *HistoryStore) AddExchange(ctx context.Context, session, question, answer string) error {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	type row struct {
		id      int64
		role    string
		content string
	}
	rows, err := tx.QueryContext(ctx, `SELECT id, role, content FROM messages WHERE session = ? ORDER BY id DESC LIMIT 2`, session)
	if err != nil {
		return err
	}
	var last []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.role, &r.content); err != nil {
			rows.Close()
			return err
		}
		last = append(last, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(last) == 2 && last[0].role == "ai" && last[1].role == "human" && last[1].content == question {
		_, err := tx.ExecContext(ctx, `UPDATE messages SET content = ?, timestamp = CURRENT_TIMESTAMP WHERE id = ?`, answer, last[0].id)
		if err != nil {
			return err
		}
		return tx.Commit()
	}

	var prev int64
	if len(last) > 0 {
		prev = last[0].id
	}
	key := hashOf(session, "exchange", question, strconv.FormatInt(prev, 10))
	query := `INSERT INTO messages (session, role, content, hash) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, session, "human", question, key+":human"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, session, "ai", answer, key+":ai"); err != nil {
		return err
	}
	return tx.Commit()
}

// GetHistory returns up to limit of the most recent messages in
// chronological order. limit <= 0 returns everything.
func (h *HistoryStore) GetHistory(ctx context.Context, session string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT role, content, timestamp FROM messages WHERE session = ? ORDER BY id DESC LIMIT ?`
	rows, err := h.DB.QueryContext(ctx, query, session, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// Clear deletes the history of one session.
func (h *HistoryStore) Clear(ctx context.Context, session string) error {
	_, err := h.DB.ExecContext(ctx, `DELETE FROM messages WHERE session = ?`, session)
	return err
}

// Sessions lists the sessions that have history.
func (h *HistoryStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := h.DB.QueryContext(ctx, `SELECT DISTINCT session FROM messages ORDER BY session`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
