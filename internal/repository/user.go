package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storefront/messaging/internal/logger"
	"github.com/storefront/messaging/internal/model"
)

// UserRepository хранит только отображаемые поля собеседников; профили ведёт внешний сервис,
// который синхронизирует их через /internal/users.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Upsert(ctx context.Context, u *model.UserPublic) error {
	defer logger.DeferLogDuration("user.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, avatar_url) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, avatar_url = EXCLUDED.avatar_url`,
		u.ID, u.Username, u.AvatarURL,
	)
	if err != nil {
		return classify("userRepo.Upsert", err)
	}
	return nil
}

func (r *UserRepository) GetPublic(ctx context.Context, id string) (*model.UserPublic, error) {
	defer logger.DeferLogDuration("user.GetPublic", time.Now())()
	u := &model.UserPublic{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, avatar_url FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.AvatarURL)
	if err != nil {
		return nil, classify("userRepo.GetPublic", err)
	}
	return u, nil
}
