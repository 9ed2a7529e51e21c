package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmehdipour/order-pipeline/internal/model"
)

type fakeOutboxRepo struct {
	pending     []model.OutboxEvent
	processed   []string
	incremented []string
}

func (f *fakeOutboxRepo) Insert(ctx context.Context, tx *sqlx.Tx, ev model.OutboxEvent) error {
	f.pending = append(f.pending, ev)
	return nil
}

func (f *fakeOutboxRepo) FetchUnprocessed(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	for _, ev := range f.pending {
		if len(out) == limit {
			break
		}
		if !ev.Processed && ev.Attempts < maxAttempts {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id string) error {
	f.processed = append(f.processed, id)
	for i := range f.pending {
		if f.pending[i].ID == id {
			f.pending[i].Processed = true
		}
	}
	return nil
}

func (f *fakeOutboxRepo) IncrementAttempts(ctx context.Context, id string) error {
	f.incremented = append(f.incremented, id)
	for i := range f.pending {
		if f.pending[i].ID == id {
			f.pending[i].Attempts++
		}
	}
	return nil
}

func (f *fakeOutboxRepo) ListDead(ctx context.Context, maxAttempts int) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	for _, ev := range f.pending {
		if !ev.Processed && ev.Attempts >= maxAttempts {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []string // routing keys in publish order
	failFor   map[string]error
}

func (f *fakePublisher) Publish(ctx context.Context, id, routingKey string, body []byte) error {
	if err := f.failFor[id]; err != nil {
		return err
	}
	f.published = append(f.published, routingKey)
	return nil
}

func newTestRelay(repo *fakeOutboxRepo, pub *fakePublisher) *Relay {
	return NewRelay(repo, pub, time.Second, 10, 5, zap.NewNop())
}

func TestRelayPublishesAndMarksProcessed(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []model.OutboxEvent{
		{ID: "ev1", EventType: model.EventOrderCreated, Payload: []byte(`{}`)},
		{ID: "ev2", EventType: model.EventOrderCreated, Payload: []byte(`{}`)},
	}}
	pub := &fakePublisher{}

	require.NoError(t, newTestRelay(repo, pub).ProcessBatch(context.Background()))

	assert.Equal(t, []string{model.EventOrderCreated, model.EventOrderCreated}, pub.published)
	assert.ElementsMatch(t, []string{"ev1", "ev2"}, repo.processed)
	assert.Empty(t, repo.incremented)
}

func TestRelayIncrementsAttemptsOnFailure(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []model.OutboxEvent{
		{ID: "bad", EventType: model.EventOrderCreated, Payload: []byte(`{}`)},
		{ID: "good", EventType: model.EventOrderCreated, Payload: []byte(`{}`)},
	}}
	pub := &fakePublisher{failFor: map[string]error{"bad": errors.New("broker down")}}

	// a failing row must not stop the rest of the batch
	require.NoError(t, newTestRelay(repo, pub).ProcessBatch(context.Background()))

	assert.Equal(t, []string{"bad"}, repo.incremented)
	assert.Equal(t, []string{"good"}, repo.processed)
}

func TestRelayRetriesUntilExhausted(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []model.OutboxEvent{
		{ID: "bad", EventType: model.EventOrderCreated, Payload: []byte(`{}`)},
	}}
	pub := &fakePublisher{failFor: map[string]error{"bad": errors.New("broker down")}}
	relay := newTestRelay(repo, pub)

	for i := 0; i < 10; i++ {
		require.NoError(t, relay.ProcessBatch(context.Background()))
	}

	// exactly MaxAttempts tries, then the row is left alone
	assert.Len(t, repo.incremented, 5)
	assert.Empty(t, repo.processed)

	dead, err := repo.ListDead(context.Background(), relay.MaxAttempts)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "bad", dead[0].ID)
}

func TestRelayHonorsBatchSize(t *testing.T) {
	repo := &fakeOutboxRepo{}
	for i := 0; i < 25; i++ {
		repo.pending = append(repo.pending, model.OutboxEvent{
			ID:        string(rune('a' + i)),
			EventType: model.EventOrderCreated,
			Payload:   []byte(`{}`),
		})
	}
	pub := &fakePublisher{}
	relay := newTestRelay(repo, pub)

	require.NoError(t, relay.ProcessBatch(context.Background()))
	assert.Len(t, repo.processed, 10)

	require.NoError(t, relay.ProcessBatch(context.Background()))
	assert.Len(t, repo.processed, 20)
}
