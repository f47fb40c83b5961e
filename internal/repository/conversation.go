package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"chat-service/internal/models"
	"chat-service/internal/utils"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
)

// isDuplicateEntry распознаёт нарушение уникального индекса MySQL (код 1062).
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, userFirstID, userSecondID string) (*models.Conversation, error) {
	conversation := &models.Conversation{
		ID:           uuid.New().String(),
		UserFirstID:  userFirstID,
		UserSecondID: userSecondID,
		CreatedAt:    time.Now().UTC(),
	}
	conversation.UpdatedAt = conversation.CreatedAt

	query := `
		INSERT INTO conversations (id, user_first_id, user_second_id, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		conversation.ID, conversation.UserFirstID, conversation.UserSecondID,
		conversation.CreatedAt, conversation.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrConversationExists
		}
		return nil, fmt.Errorf("ошибка создания диалога: %w", err)
	}

	utils.LogSuccess("ConversationRepo", "Диалог создан: %s (%s ↔ %s)",
		conversation.ID, userFirstID, userSecondID)

	return conversation, nil
}

// GetByID возвращает диалог по идентификатору. Мягко удалённые диалоги
// считаются отсутствующими.
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	query := `
		SELECT id, user_first_id, user_second_id, is_deleted, deleted_at, created_at, updated_at
		FROM conversations
		WHERE id = ? AND is_deleted = 0
	`

	conversation := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(
		&conversation.ID,
		&conversation.UserFirstID,
		&conversation.UserSecondID,
		&conversation.IsDeleted,
		&conversation.DeletedAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("ошибка получения диалога: %w", err)
	}

	return conversation, nil
}

// GetByUsers ищет диалог по нормализованной паре участников.
func (r *ConversationRepository) GetByUsers(ctx context.Context, userFirstID, userSecondID string) (*models.Conversation, error) {
	query := `
		SELECT id, user_first_id, user_second_id, is_deleted, deleted_at, created_at, updated_at
		FROM conversations
		WHERE user_first_id = ? AND user_second_id = ? AND is_deleted = 0
	`

	conversation := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, userFirstID, userSecondID).Scan(
		&conversation.ID,
		&conversation.UserFirstID,
		&conversation.UserSecondID,
		&conversation.IsDeleted,
		&conversation.DeletedAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("ошибка поиска диалога: %w", err)
	}

	return conversation, nil
}

func (r *ConversationRepository) GetByUserID(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := `
		SELECT id, user_first_id, user_second_id, is_deleted, deleted_at, created_at, updated_at
		FROM conversations
		WHERE (user_first_id = ? OR user_second_id = ?) AND is_deleted = 0
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка диалогов: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conversation models.Conversation
		err := rows.Scan(
			&conversation.ID,
			&conversation.UserFirstID,
			&conversation.UserSecondID,
			&conversation.IsDeleted,
			&conversation.DeletedAt,
			&conversation.CreatedAt,
			&conversation.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования диалога: %w", err)
		}
		conversations = append(conversations, conversation)
	}

	return conversations, rows.Err()
}

// SoftDelete помечает диалог удалённым, не трогая историю сообщений.
func (r *ConversationRepository) SoftDelete(ctx context.Context, conversationID string) error {
	query := `
		UPDATE conversations
		SET is_deleted = 1, deleted_at = ?
		WHERE id = ? AND is_deleted = 0
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("ошибка удаления диалога: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка удаления диалога: %w", err)
	}
	if affected == 0 {
		return ErrConversationNotFound
	}

	utils.LogSuccess("ConversationRepo", "Диалог помечен удалённым: %s", conversationID)
	return nil
}

// ListDeletedBefore возвращает идентификаторы диалогов, мягко удалённых
// раньше указанного момента. Используется планировщиком для зачистки.
func (r *ConversationRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM conversations
		WHERE is_deleted = 1 AND deleted_at < ?
		ORDER BY deleted_at
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска удалённых диалогов: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования идентификатора: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Purge физически удаляет диалог вместе с сообщениями одной транзакцией.
func (r *ConversationRepository) Purge(ctx context.Context, conversationID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("ошибка удаления сообщений диалога: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("ошибка удаления диалога: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка подтверждения транзакции: %w", err)
	}

	utils.LogSuccess("ConversationRepo", "Диалог вычищен: %s", conversationID)
	return nil
}
