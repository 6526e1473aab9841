package ports

import (
	"context"

	"roomlink/internal/core/domain"
)

// SessionStorage persists the local session across restarts. Load returns
// (nil, nil) when nothing is stored.
type SessionStorage interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Clear(ctx context.Context) error
}
