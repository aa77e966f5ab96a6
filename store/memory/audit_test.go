package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(t *testing.T, at time.Time, name string, id int) *audit.Entry {
	t.Helper()
	e, err := audit.NewEntry(audit.Record{Module: "account", Name: name, ID: id}, "tester", nil)
	require.NoError(t, err)
	e.AddedOn = at
	return e
}

func TestAuditStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewAuditStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// appended out of order
	require.NoError(t, store.Append(ctx, entry(t, base.Add(2*time.Hour), "User", 1)))
	require.NoError(t, store.Append(ctx, entry(t, base, "User", 1)))
	require.NoError(t, store.Append(ctx, entry(t, base.Add(time.Hour), "Report", 7)))
	require.NoError(t, store.Append(ctx, entry(t, base.Add(3*time.Hour), "User", 2)))
	assert.Equal(t, 4, store.Len())

	tests := []struct {
		name   string
		filter audit.Filter
		want   []time.Time
	}{
		{
			name: "all oldest first",
			want: []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour), base.Add(3 * time.Hour)},
		},
		{
			name:   "by name",
			filter: audit.Filter{Name: "User"},
			want:   []time.Time{base, base.Add(2 * time.Hour), base.Add(3 * time.Hour)},
		},
		{
			name:   "by object id",
			filter: audit.Filter{Name: "User", ObjectID: "1"},
			want:   []time.Time{base, base.Add(2 * time.Hour)},
		},
		{
			name:   "time window",
			filter: audit.Filter{Since: base.Add(time.Hour), Until: base.Add(3 * time.Hour)},
			want:   []time.Time{base.Add(time.Hour), base.Add(2 * time.Hour)},
		},
		{
			name:   "limit",
			filter: audit.Filter{Limit: 2},
			want:   []time.Time{base, base.Add(time.Hour)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			require.NoError(t, err)
			var times []time.Time
			for _, e := range got {
				times = append(times, e.AddedOn)
			}
			assert.Equal(t, tt.want, times)
		})
	}
}

func TestAuditStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewAuditStore()
	e := entry(t, time.Now(), "User", 1)
	require.NoError(t, store.Append(ctx, e))
	assert.Error(t, store.Append(ctx, e))
}

func TestAuditStore_CopiesEntries(t *testing.T) {
	ctx := context.Background()
	store := NewAuditStore()
	keyID := uuid.New()
	e := entry(t, time.Now(), "User", 1)
	e.EncryptionKeyID = &keyID
	require.NoError(t, store.Append(ctx, e))

	e.AddedBy = "changed"
	got, err := store.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tester", got[0].AddedBy)
	assert.Equal(t, keyID, *got[0].EncryptionKeyID)
}
