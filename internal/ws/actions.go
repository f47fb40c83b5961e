package ws

import (
	"encoding/json"
	"errors"
)

const (
	ActionSendMessage  = "send_message"
	ActionMessageSaved = "message_saved"
)

var ErrUnknownAction = errors.New("unknown action")

// SendMessageData — полезная нагрузка действия send_message.
type SendMessageData struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// ClientAction — входящий кадр websocket-протокола:
//
//	{"action": "send_message", "data": {"sender_id": "...", "recipient_id": "...", "content": "..."}}
type ClientAction struct {
	Action string          `json:"action"`
	Data   SendMessageData `json:"data"`
}

// ParseClientAction разбирает и валидирует входящий кадр.
func ParseClientAction(raw []byte) (*ClientAction, error) {
	var action ClientAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, err
	}

	if action.Action == "" {
		return nil, ErrUnknownAction
	}

	return &action, nil
}

// MessageSavedResponse — подтверждение сохранения, уходит отправителю и
// остальным подключениям диалога.
func MessageSavedResponse(senderID, recipientID, content string) map[string]interface{} {
	return map[string]interface{}{
		"action": ActionMessageSaved,
		"data": map[string]string{
			"sender_id":    senderID,
			"recipient_id": recipientID,
			"content":      content,
		},
	}
}

func ErrorResponse(detail string) map[string]string {
	return map[string]string{"error": detail}
}
