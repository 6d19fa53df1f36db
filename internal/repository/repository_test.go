package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/messaging/internal/apperr"
	"github.com/storefront/messaging/internal/model"
	"github.com/storefront/messaging/internal/repository"
	"github.com/storefront/messaging/internal/startup"
)

// Тестам нужен одноразовый Postgres: TEST_DATABASE_URL=postgres://... go test ./internal/repository
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, startup.RunMigrations(ctx, pool))
	return pool
}

func newUserID() string { return "u-" + uuid.NewString() }

func TestConversationFindByPairIsOrderIndependent(t *testing.T) {
	pool := testPool(t)
	repo := repository.NewConversationRepository(pool)
	ctx := context.Background()
	a, b := newUserID(), newUserID()

	created, err := repo.Insert(ctx, a, b)
	require.NoError(t, err)

	c1, err := repo.FindByPair(ctx, a, b)
	require.NoError(t, err)
	c2, err := repo.FindByPair(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, created.ID, c1.ID)
	assert.Equal(t, created.ID, c2.ID)

	_, err = repo.Insert(ctx, b, a)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestConversationConcurrentInsertYieldsOneRow(t *testing.T) {
	pool := testPool(t)
	repo := repository.NewConversationRepository(pool)
	ctx := context.Background()
	a, b := newUserID(), newUserID()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a, b
			if i%2 == 1 {
				x, y = b, a
			}
			if _, err := repo.Insert(ctx, x, y); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	var rows int
	low, high := model.CanonicalPair(a, b)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversations WHERE participant_low = $1 AND participant_high = $2`, low, high).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestMessagesListAndMarkRead(t *testing.T) {
	pool := testPool(t)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	ctx := context.Background()
	a, b := newUserID(), newUserID()

	conv, err := convRepo.Insert(ctx, a, b)
	require.NoError(t, err)

	for i, sender := range []string{a, b, a, a} {
		m := &model.Message{ConversationID: conv.ID, SenderID: sender, Content: string(rune('a' + i))}
		require.NoError(t, msgRepo.Create(ctx, m))
	}

	unread, err := msgRepo.CountUnreadForUser(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	msgs, marked, err := msgRepo.ListAndMarkRead(ctx, conv.ID, b)
	require.NoError(t, err)
	assert.EqualValues(t, 3, marked)
	require.Len(t, msgs, 4)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}
	for _, m := range msgs {
		if m.SenderID == a {
			assert.True(t, m.IsRead)
		} else {
			assert.False(t, m.IsRead, "requester's own message must stay unread")
		}
	}

	summaries, err := convRepo.ListForUser(ctx, a)
	require.NoError(t, err)
	require.NotEmpty(t, summaries)
	assert.Equal(t, conv.ID, summaries[0].ConversationID)
	assert.Equal(t, b, summaries[0].Other.ID)
	assert.Equal(t, "d", summaries[0].LastMessage)
	assert.Equal(t, 1, summaries[0].UnreadCount)
}

func TestNotificationsMarkReadRespectsOwnership(t *testing.T) {
	pool := testPool(t)
	repo := repository.NewNotificationRepository(pool)
	ctx := context.Background()
	owner := model.UserRecipient(newUserID())
	other := model.UserRecipient(newUserID())

	mine := &model.Notification{Recipient: &owner, Type: "order", Content: "shipped"}
	theirs := &model.Notification{Recipient: &other, Type: "order", Content: "paid"}
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, theirs))

	n, err := repo.MarkRead(ctx, owner, []string{mine.ID, theirs.ID, "not-a-uuid"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	items, total, err := repo.List(ctx, other, model.NotificationQuery{Filter: model.FilterUnread, Category: "order"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, theirs.ID, items[0].ID)
	assert.False(t, items[0].IsRead)
}
