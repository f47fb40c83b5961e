package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat-service/internal/models"
	"chat-service/internal/utils"
)

var (
	ErrMessageNotFound = errors.New("message not found")
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create сохраняет новое сообщение со статусом SENT.
func (r *MessageRepository) Create(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	message := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Status:         models.StatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	message.UpdatedAt = message.CreatedAt

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		message.ID, message.ConversationID, message.SenderID,
		message.Content, string(message.Status), message.CreatedAt, message.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи сообщения: %w", err)
	}

	utils.LogDB("CREATE MESSAGE", fmt.Sprintf("Сообщение %s записано в диалог %s", message.ID, conversationID))

	return message, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, status, created_at, updated_at
		FROM messages
		WHERE id = ?
	`

	message := &models.Message{}
	err := r.db.QueryRowContext(ctx, query, messageID).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Content,
		&message.Status,
		&message.CreatedAt,
		&message.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("ошибка получения сообщения: %w", err)
	}

	return message, nil
}

// ListByConversation возвращает историю диалога по возрастанию created_at.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, status, created_at, updated_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории сообщений: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.Content,
			&message.Status,
			&message.CreatedAt,
			&message.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

func (r *MessageRepository) UpdateStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	query := `
		UPDATE messages
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), messageID)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса сообщения: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса сообщения: %w", err)
	}
	if affected == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, messageID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("ошибка удаления сообщения: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка удаления сообщения: %w", err)
	}
	if affected == 0 {
		return ErrMessageNotFound
	}

	utils.LogDB("DELETE MESSAGE", fmt.Sprintf("Сообщение удалено: %s", messageID))
	return nil
}

// MarkDeliveredBefore переводит зависшие в SENT сообщения старше cutoff
// в DELIVERED. Возвращает число обновлённых строк.
func (r *MessageRepository) MarkDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE messages
		SET status = 'DELIVERED', updated_at = ?
		WHERE status = 'SENT' AND created_at < ?
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка сверки доставки: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка сверки доставки: %w", err)
	}

	return affected, nil
}

// CountByStatus считает сообщения в разрезе статусов.
func (r *MessageRepository) CountByStatus(ctx context.Context) (map[models.MessageStatus]int64, error) {
	query := `SELECT status, COUNT(*) FROM messages GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта сообщений: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.MessageStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		counts[models.MessageStatus(status)] = count
	}

	return counts, rows.Err()
}
