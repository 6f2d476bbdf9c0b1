package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stoq/internal/core/context"
	"stoq/internal/core/id"
	"stoq/internal/domain/events"
)

func TestAuditEntry_CarriesUserAndEvent(t *testing.T) {
	log, err := NewAuditLog(nil, 0)
	require.NoError(t, err)

	groupID := id.New()
	at := time.Date(2024, 3, 4, 10, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", BranchID: "b-1"})
	entry, err := log.entry(ctx, events.Event{
		Topic:         events.TopicGroupCancelled,
		AggregateType: "payment_group",
		AggregateID:   groupID,
		OccurredAt:    at,
		Payload:       events.GroupCancelled{GroupID: groupID, Cancelled: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "payment_group", entry.EntityType)
	assert.Equal(t, groupID, entry.EntityID)
	assert.Equal(t, "group.cancelled", entry.Action)
	assert.Equal(t, "u-1", entry.UserID)
	assert.Equal(t, "b-1", entry.BranchID)
	assert.Equal(t, time.UTC, entry.CreatedAt.Location())
	assert.True(t, entry.CreatedAt.Equal(at))
	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.JSONEq(t, `{"groupId":"`+groupID.String()+`","cancelled":2}`, string(entry.Changes))
}

func TestAuditEntry_CompressesLargeChanges(t *testing.T) {
	log, err := NewAuditLog(nil, 64)
	require.NoError(t, err)

	payload := map[string]string{"note": strings.Repeat("renegotiated ", 40)}
	entry, err := log.entry(context.Background(), events.Event{Topic: "note", AggregateID: id.New(), Payload: payload})
	require.NoError(t, err)
	require.Equal(t, CompressionZstd, entry.CompressionAlgo)
	assert.Nil(t, entry.Changes)
	assert.NotEmpty(t, entry.ChangesCompressed)
	assert.False(t, entry.CreatedAt.IsZero())

	require.NoError(t, log.inflate(&entry))
	assert.Equal(t, CompressionNone, entry.CompressionAlgo)
	assert.Contains(t, string(entry.Changes), "renegotiated renegotiated")
}
