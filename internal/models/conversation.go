package models

import "time"

// Conversation — диалог между двумя пользователями платформы.
// Пара участников хранится в нормализованном порядке (first < second),
// чтобы уникальный индекс исключал дубликаты диалогов.
type Conversation struct {
	ID           string     `json:"id"`
	UserFirstID  string     `json:"user_first_id"`
	UserSecondID string     `json:"user_second_id"`
	IsDeleted    bool       `json:"-"`
	DeletedAt    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CreateConversationRequest struct {
	UserFirstID  string `json:"user_first_id"`
	UserSecondID string `json:"user_second_id"`
}

type ConversationResponse struct {
	ID           string `json:"id"`
	UserFirstID  string `json:"user_first_id"`
	UserSecondID string `json:"user_second_id"`
}

type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Total         int                    `json:"total"`
}
