package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
	pushed map[string][][]byte
	err    error
}

func newFakePresence(online ...string) *fakePresence {
	p := &fakePresence{online: make(map[string]bool), pushed: make(map[string][][]byte)}
	for _, id := range online {
		p.online[id] = true
	}
	return p
}

func (p *fakePresence) MarkOnline(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *fakePresence) Online(ctx context.Context, userIDs []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	var out []string
	for _, id := range userIDs {
		if p.online[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (p *fakePresence) Push(ctx context.Context, userID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[userID] = append(p.pushed[userID], payload)
	return nil
}

func TestNotificationService_RequestCreatedTargetsUplineAndAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	presence := newFakePresence(userAdmin)
	svc := NewNotificationService(f.store.Notifications(), f.store.Users(), presence, nil, nil)

	evt := &dto.TicketRequestCreatedEvent{
		RequestID:    "req-1",
		UserID:       userClient,
		CreatedBy:    userClient,
		TitleRequest: domain.TitleBookTicket,
	}
	require.NoError(t, svc.NotifyRequestCreated(ctx, evt))

	for _, id := range []string{userAgent, userAdmin} {
		list, err := svc.ListForUser(ctx, id, 10)
		require.NoError(t, err)
		require.Len(t, list, 1, id)
		assert.Equal(t, domain.NotificationTicketRequestCreated, list[0].Type)

		var payload dto.TicketRequestCreatedEvent
		require.NoError(t, json.Unmarshal(list[0].Payload, &payload))
		assert.Equal(t, "req-1", payload.RequestID)
	}

	own, err := svc.ListForUser(ctx, userClient, 10)
	require.NoError(t, err)
	assert.Empty(t, own)

	// only the online admin gets a push
	assert.Len(t, presence.pushed[userAdmin], 1)
	assert.Empty(t, presence.pushed[userAgent])
}

func TestNotificationService_AdminCallerIsNotNotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewNotificationService(f.store.Notifications(), f.store.Users(), nil, nil, nil)

	require.NoError(t, svc.NotifyRequestCreated(ctx, &dto.TicketRequestCreatedEvent{
		RequestID: "req-1",
		UserID:    userAdmin,
		CreatedBy: userAdmin,
	}))

	list, err := svc.ListForUser(ctx, userAdmin, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotificationService_RequestResolvedTargetsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewNotificationService(f.store.Notifications(), f.store.Users(), newFakePresence(), nil, nil)

	require.NoError(t, svc.NotifyRequestResolved(ctx, &dto.TicketRequestConfirmedEvent{
		RequestID:    "req-2",
		UserID:       userClient,
		TitleRequest: domain.TitleCancelTicket,
		Status:       domain.RequestStatusCancelled,
	}))

	list, err := svc.ListForUser(ctx, userClient, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationTicketCancelled, list[0].Type)
}

func TestNotificationService_PresenceFailureKeepsRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	presence := newFakePresence(userClient)
	presence.err = assert.AnError
	svc := NewNotificationService(f.store.Notifications(), f.store.Users(), presence, nil, nil)

	svc.Dispatch(ctx, domain.NotificationCommissionPaid, []string{userClient, userClient, ""}, map[string]string{"trip_id": testTripID})

	list, err := svc.ListForUser(ctx, userClient, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Empty(t, presence.pushed)
}

func TestNotificationService_Heartbeat(t *testing.T) {
	presence := newFakePresence()
	svc := NewNotificationService(nil, nil, presence, nil, nil)

	require.NoError(t, svc.Heartbeat(context.Background(), userClient))
	assert.True(t, presence.online[userClient])
}
