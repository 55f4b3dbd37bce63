package use_case

import (
	"context"
	"testing"
	"time"

	"github.com/collabhub/realtime/domain"
	"github.com/collabhub/realtime/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUID struct {
	next uint64
	err  error
}

func (f *fakeUID) NewUID(context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}

	f.next++
	return f.next, nil
}

type fakeResolver struct {
	members map[uint64][]uint64
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, workItemID uint64) ([]uint64, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.members[workItemID], nil
}

type fakeStore struct {
	domain.NotificationStore

	inserted  map[uint64][]uint64
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{inserted: map[uint64][]uint64{}}
}

func (f *fakeStore) Insert(_ context.Context, userID uint64, event *domain.NotificationEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}

	f.inserted[userID] = append(f.inserted[userID], event.ID)
	return nil
}

type fakePublisher struct {
	envelopes []*queue.EventEnvelope
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, envelope *queue.EventEnvelope) error {
	if f.err != nil {
		return f.err
	}

	f.envelopes = append(f.envelopes, envelope)
	return nil
}

type useCaseFixture struct {
	uid       *fakeUID
	resolver  *fakeResolver
	store     *fakeStore
	publisher *fakePublisher
	uc        *publishEvent
}

func newUseCaseFixture() *useCaseFixture {
	f := &useCaseFixture{
		uid:       &fakeUID{},
		resolver:  &fakeResolver{members: map[uint64][]uint64{}},
		store:     newFakeStore(),
		publisher: &fakePublisher{},
	}

	f.uc = NewPublishEvent(f.uid, f.resolver, f.store, f.publisher, zap.NewNop())
	return f
}

func chatEvent(origin uint64) *domain.NotificationEvent {
	return &domain.NotificationEvent{
		Type:         domain.EventChatMessage,
		OriginUserID: origin,
	}
}

func TestExecuteAssignsIDAndTimestamp(t *testing.T) {
	f := newUseCaseFixture()

	event := chatEvent(1)
	err := f.uc.Execute(context.Background(), event, domain.Audience{UserIDs: []uint64{2}})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestExecuteKeepsExistingID(t *testing.T) {
	f := newUseCaseFixture()

	event := chatEvent(1)
	event.ID = 42
	event.CreatedAt = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	err := f.uc.Execute(context.Background(), event, domain.Audience{UserIDs: []uint64{2}})
	require.NoError(t, err)

	assert.Equal(t, uint64(42), event.ID)
	assert.Zero(t, f.uid.next)
}

func TestExecutePersistsPerRecipientExcludingOrigin(t *testing.T) {
	f := newUseCaseFixture()
	f.resolver.members[7] = []uint64{1, 2, 3}

	err := f.uc.Execute(context.Background(), chatEvent(1), domain.Audience{WorkItemID: 7})
	require.NoError(t, err)

	assert.NotContains(t, f.store.inserted, uint64(1))
	assert.Contains(t, f.store.inserted, uint64(2))
	assert.Contains(t, f.store.inserted, uint64(3))
}

func TestExecutePublishesEnvelope(t *testing.T) {
	f := newUseCaseFixture()

	err := f.uc.Execute(context.Background(), chatEvent(1), domain.Audience{UserIDs: []uint64{2}, WorkItemID: 7})
	require.NoError(t, err)

	require.Len(t, f.publisher.envelopes, 1)
	envelope := f.publisher.envelopes[0]
	assert.Equal(t, []uint64{2}, envelope.UserIDs)
	assert.Equal(t, uint64(7), envelope.WorkItemID)
	assert.Equal(t, uint64(1), envelope.Event.ID)
}

func TestStoreFailureDoesNotBlockPublish(t *testing.T) {
	f := newUseCaseFixture()
	f.store.insertErr = assert.AnError

	err := f.uc.Execute(context.Background(), chatEvent(1), domain.Audience{UserIDs: []uint64{2}})
	require.NoError(t, err)

	assert.Len(t, f.publisher.envelopes, 1)
}

func TestResolverFailureSkipsPersistenceNotPublish(t *testing.T) {
	f := newUseCaseFixture()
	f.resolver.err = assert.AnError

	err := f.uc.Execute(context.Background(), chatEvent(1), domain.Audience{WorkItemID: 7})
	require.NoError(t, err)

	assert.Empty(t, f.store.inserted)
	assert.Len(t, f.publisher.envelopes, 1)
}

func TestUIDFailureFailsExecute(t *testing.T) {
	f := newUseCaseFixture()
	f.uid.err = assert.AnError

	err := f.uc.Execute(context.Background(), chatEvent(1), domain.Audience{UserIDs: []uint64{2}})
	require.Error(t, err)

	assert.Empty(t, f.publisher.envelopes)
}

func TestPublisherFailureSurfaces(t *testing.T) {
	f := newUseCaseFixture()
	f.publisher.err = assert.AnError

	err := f.uc.Execute(context.Background(), chatEvent(1), domain.Audience{UserIDs: []uint64{2}})
	require.ErrorIs(t, err, assert.AnError)
}
