package store

import (
	"context"
	"log"

	"school-messenger/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresMessageStore struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageStore(pool *pgxpool.Pool) *PostgresMessageStore {
	return &PostgresMessageStore{
		pool: pool,
	}
}

const messageColumns = `id, sender_id, sender_role_id, receiver_id, receiver_role_id, subject, content, created_at, is_read`

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.Sender.UserID,
		&m.Sender.RoleID,
		&m.Receiver.UserID,
		&m.Receiver.RoleID,
		&m.Subject,
		&m.Content,
		&m.CreatedAt,
		&m.Read,
	)
	return m, err
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			log.Printf("[STORE ERROR] Scan failed: %v", err)
			return nil, &models.PersistenceError{Op: "scan", Err: err}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.PersistenceError{Op: "scan", Err: err}
	}

	return messages, nil
}

func (s *PostgresMessageStore) Append(ctx context.Context, m *models.Message) error {
	if err := validate(m); err != nil {
		return err
	}
	if m.Subject == "" {
		m.Subject = models.DefaultSubject
	}

	const query = `
        INSERT INTO messages (sender_id, sender_role_id, receiver_id, receiver_role_id, subject, content)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at
    `

	err := s.pool.QueryRow(ctx, query,
		m.Sender.UserID,
		m.Sender.RoleID,
		m.Receiver.UserID,
		m.Receiver.RoleID,
		m.Subject,
		m.Content,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		log.Printf("[STORE ERROR] Failed to append message from %s to %s: %v", m.Sender.Key(), m.Receiver.Key(), err)
		return &models.PersistenceError{Op: "append", Err: err}
	}

	m.Read = false
	return nil
}

func (s *PostgresMessageStore) ForConversation(ctx context.Context, a, b models.Ref) ([]models.Message, error) {
	query := `
        SELECT ` + messageColumns + `
        FROM messages
        WHERE (sender_id = $1 AND sender_role_id = $2 AND receiver_id = $3 AND receiver_role_id = $4)
           OR (sender_id = $3 AND sender_role_id = $4 AND receiver_id = $1 AND receiver_role_id = $2)
        ORDER BY created_at ASC, id ASC
    `

	rows, err := s.pool.Query(ctx, query, a.UserID, a.RoleID, b.UserID, b.RoleID)
	if err != nil {
		log.Printf("[STORE ERROR] Conversation fetch failed for %s/%s: %v", a.Key(), b.Key(), err)
		return nil, &models.PersistenceError{Op: "conversation fetch", Err: err}
	}

	return collectMessages(rows)
}

func (s *PostgresMessageStore) UnreadFor(ctx context.Context, ref models.Ref) ([]models.Message, error) {
	query := `
        SELECT ` + messageColumns + `
        FROM messages
        WHERE receiver_id = $1 AND receiver_role_id = $2 AND is_read = false
        ORDER BY created_at DESC, id DESC
    `

	rows, err := s.pool.Query(ctx, query, ref.UserID, ref.RoleID)
	if err != nil {
		log.Printf("[STORE ERROR] Unread fetch failed for %s: %v", ref.Key(), err)
		return nil, &models.PersistenceError{Op: "unread fetch", Err: err}
	}

	return collectMessages(rows)
}

func (s *PostgresMessageStore) MarkRead(ctx context.Context, id int64) error {
	const query = `
        UPDATE messages
        SET is_read = true
        WHERE id = $1 AND is_read = false
    `

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		log.Printf("[STORE ERROR] Failed to mark message %d read: %v", id, err)
		return &models.PersistenceError{Op: "mark read", Err: err}
	}

	if tag.RowsAffected() == 0 {
		log.Printf("[STORE INFO] No rows updated for message %d (already read or ID missing)", id)
	}

	return nil
}

func (s *PostgresMessageStore) MarkConversationRead(ctx context.Context, owner, counterpart models.Ref) error {
	const query = `
        UPDATE messages
        SET is_read = true
        WHERE receiver_id = $1 AND receiver_role_id = $2
          AND sender_id = $3 AND sender_role_id = $4
          AND is_read = false
    `

	_, err := s.pool.Exec(ctx, query, owner.UserID, owner.RoleID, counterpart.UserID, counterpart.RoleID)
	if err != nil {
		log.Printf("[STORE ERROR] Bulk mark-read failed for %s/%s: %v", owner.Key(), counterpart.Key(), err)
		return &models.PersistenceError{Op: "bulk mark read", Err: err}
	}

	return nil
}

// MostRecentPerCounterpart folds both message directions into a derived
// counterpart column and keeps one row per counterpart with DISTINCT ON,
// so the conversation list costs a single scan however many conversations
// the user has.
func (s *PostgresMessageStore) MostRecentPerCounterpart(ctx context.Context, ref models.Ref) ([]models.Message, error) {
	const query = `
        SELECT DISTINCT ON (cp_role_id, cp_id)
               id, sender_id, sender_role_id, receiver_id, receiver_role_id, subject, content, created_at, is_read
        FROM (
            SELECT *,
                CASE WHEN sender_id = $1 AND sender_role_id = $2 THEN receiver_id ELSE sender_id END AS cp_id,
                CASE WHEN sender_id = $1 AND sender_role_id = $2 THEN receiver_role_id ELSE sender_role_id END AS cp_role_id
            FROM messages
            WHERE (sender_id = $1 AND sender_role_id = $2)
               OR (receiver_id = $1 AND receiver_role_id = $2)
        ) exchanged
        ORDER BY cp_role_id, cp_id, created_at DESC, id DESC
    `

	rows, err := s.pool.Query(ctx, query, ref.UserID, ref.RoleID)
	if err != nil {
		log.Printf("[STORE ERROR] Recent-counterpart scan failed for %s: %v", ref.Key(), err)
		return nil, &models.PersistenceError{Op: "recent counterpart scan", Err: err}
	}

	return collectMessages(rows)
}
