package donation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Moneyhil/fyp-project/internal/models"
)

// Messages возвращает входящие сообщения пользователя (уведомления
// о согласии доноров и системные сообщения).
func Messages(ctx context.Context, client API) ([]models.Message, error) {
	const op = "donation.Messages"

	var out struct {
		Messages []models.Message `json:"messages"`
	}

	if err := client.Do(ctx, http.MethodGet, "/messages/", nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out.Messages, nil
}

// MarkMessageRead помечает сообщение прочитанным.
func MarkMessageRead(ctx context.Context, client API, id int64) error {
	const op = "donation.MarkMessageRead"

	path := fmt.Sprintf("/messages/%d/mark-read/", id)
	if err := client.Do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
