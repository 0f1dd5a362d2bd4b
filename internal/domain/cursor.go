package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// PageCursor — непрозрачная позиция keyset-пагинации: поля последнего
// выданного документа, после которого продолжается выборка.
type PageCursor struct {
	CreatedAt time.Time `json:"created_at,omitempty"`
	Name      string    `json:"name,omitempty"`
	OwnerID   string    `json:"owner_id"`
	ID        string    `json:"id"`
}

// Encode сериализует курсор в непрозрачный токен для передачи клиенту.
func (c PageCursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodePageCursor восстанавливает курсор из токена.
func DecodePageCursor(token string) (PageCursor, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return PageCursor{}, fmt.Errorf("декодирование курсора: %w", err)
	}
	var c PageCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return PageCursor{}, fmt.Errorf("разбор курсора: %w", err)
	}
	return c, nil
}
