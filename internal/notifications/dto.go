package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/vrumi/vrumi-backend/pkg/db/models"
)

// NotificationDTO is the API shape of one notification.
type NotificationDTO struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      *string    `json:"link,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toDTOs(rows []models.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NotificationDTO{
			ID:        row.ID,
			Title:     row.Title,
			Body:      row.Body,
			Link:      row.Link,
			ReadAt:    row.ReadAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}
