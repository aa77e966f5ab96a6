package remotecare_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/audit"
	"github.com/hengadev/remotecare/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func insert(p *patient) func(context.Context) error {
	return func(context.Context) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		return nil
	}
}

func TestVault_AuditAddedRecord(t *testing.T) {
	store := memory.NewAuditStore()
	v := remotecare.NewTestVault(t, remotecare.WithAuditStore(store))
	ctx := remotecare.WithActor(context.Background(), "secretary-1")

	p := newPatient(t, v)
	require.NoError(t, v.Save(ctx, p, insert(p)))

	entries, err := v.History(ctx, audit.Filter{Name: "patient"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]

	assert.True(t, e.Added())
	assert.Equal(t, "secretary-1", e.AddedBy)
	assert.Equal(t, p.ID.String(), e.ObjectID())
	require.NotNil(t, e.EncryptionKeyID)
	assert.Equal(t, p.KeyID, *e.EncryptionKeyID)

	stored, ok := e.Change("first_name")
	require.True(t, ok)
	assert.Equal(t, p.FirstNameEncrypted, stored.String())
	for _, excluded := range []string{"id", "key_id", "first_name_encrypted", "first_name_hmac"} {
		_, ok := e.Change(excluded)
		assert.False(t, ok, excluded)
	}

	changes, err := v.AuditChanges(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "Jan", changes["first_name"])
	assert.Equal(t, "Jan.Jansen@Example.org", changes["email"])
	assert.Equal(t, "0612345678", changes["mobile"])
	assert.Equal(t, "UMCG", changes["hospital"])
}

func TestVault_AuditUpdatedRecord(t *testing.T) {
	store := memory.NewAuditStore()
	v := remotecare.NewTestVault(t, remotecare.WithAuditStore(store))
	ctx := remotecare.WithActor(context.Background(), "secretary-1")

	p := newPatient(t, v)
	require.NoError(t, v.Save(ctx, p, insert(p)))

	// unchanged save writes nothing
	require.NoError(t, v.Save(ctx, p, insert(p)))
	assert.Equal(t, 1, store.Len())

	p.Hospital = "Martini"
	p.Email = "jan@example.org"
	p.SetChangedBy("manager-2")
	require.NoError(t, v.Save(ctx, p, insert(p)))
	require.Equal(t, 2, store.Len())

	entries, err := v.History(ctx, audit.Filter{AddedBy: "manager-2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.False(t, e.Added())

	changes, err := v.AuditChanges(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"hospital": "Martini",
		"email":    "jan@example.org",
	}, changes)
}

func TestVault_AuditClearedValue(t *testing.T) {
	v := remotecare.NewTestVault(t, remotecare.WithAuditStore(memory.NewAuditStore()))
	ctx := remotecare.WithActor(context.Background(), "secretary-1")

	p := newPatient(t, v)
	p.Mobile = nil
	require.NoError(t, v.Save(ctx, p, insert(p)))

	empty := ""
	p.Mobile = &empty
	require.NoError(t, v.Seal(ctx, p))
	entry, err := v.PrepareAudit(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, entry)

	rec, err := entry.Record()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"mobile": ""}, rec.Changes)
	assert.True(t, gjson.Get(entry.JSON, "changes.mobile").Exists())
}

func TestVault_AuditWithoutUser(t *testing.T) {
	ctx := context.Background()

	t.Run("logged when not strict", func(t *testing.T) {
		var buf bytes.Buffer
		store := memory.NewAuditStore()
		logger := remotecare.NewLogger(remotecare.LoggerConfig{Output: &buf, Format: remotecare.LogFormatJSON})
		v := remotecare.NewTestVault(t, remotecare.WithAuditStore(store), remotecare.WithLogger(logger))

		p := newPatient(t, v)
		require.NoError(t, v.Save(ctx, p, insert(p)))
		assert.Zero(t, store.Len())
		assert.Contains(t, buf.String(), "audit user not defined")
		assert.Contains(t, buf.String(), `"msg":"audit entry"`)
	})

	t.Run("rejected when strict", func(t *testing.T) {
		kms := remotecare.NewSimpleTestKMS()
		v, err := remotecare.NewVault(ctx, kms, remotecare.NewTestSecretStore(t),
			remotecare.Config{KEKAlias: "kek", Debug: true},
			remotecare.WithKeyStore(remotecare.NewInMemoryKeyStore()),
		)
		require.NoError(t, err)

		p := newPatient(t, v)
		saved := false
		err = v.Save(ctx, p, func(context.Context) error { saved = true; return nil })
		assert.ErrorIs(t, err, remotecare.ErrAuditUserNotDefined)
		assert.False(t, saved)
	})
}

func TestVault_AuditDisabled(t *testing.T) {
	ctx := remotecare.WithActor(context.Background(), "secretary-1")

	t.Run("per record", func(t *testing.T) {
		store := memory.NewAuditStore()
		v := remotecare.NewTestVault(t, remotecare.WithAuditStore(store))
		p := newPatient(t, v)
		p.Disable()
		require.NoError(t, v.Save(ctx, p, insert(p)))
		assert.Zero(t, store.Len())
	})

	t.Run("globally", func(t *testing.T) {
		store := memory.NewAuditStore()
		v, err := remotecare.NewVault(ctx, remotecare.NewSimpleTestKMS(), remotecare.NewTestSecretStore(t),
			remotecare.Config{KEKAlias: "kek", DisableAuditing: true},
			remotecare.WithKeyStore(remotecare.NewInMemoryKeyStore()),
			remotecare.WithAuditStore(store),
		)
		require.NoError(t, err)
		p := newPatient(t, v)
		require.NoError(t, v.Save(ctx, p, insert(p)))
		assert.Zero(t, store.Len())
	})
}

// publisherMock is a testify mock of audit.Publisher.
type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, e *audit.Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func TestVault_AuditPublish(t *testing.T) {
	tests := []struct {
		name       string
		publishErr error
	}{
		{name: "published", publishErr: nil},
		{name: "publish failure does not fail the save", publishErr: errors.New("broker down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &publisherMock{}
			store := memory.NewAuditStore()
			v := remotecare.NewTestVault(t,
				remotecare.WithAuditStore(store),
				remotecare.WithAuditPublisher(pub),
			)
			ctx := remotecare.WithActor(context.Background(), "secretary-1")

			p := newPatient(t, v)
			pub.On("Publish", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
				return e.ObjectID() == p.ID.String() && e.AddedBy == "secretary-1"
			})).Return(tt.publishErr).Once()

			require.NoError(t, v.Save(ctx, p, insert(p)))
			pub.AssertExpectations(t)
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestVault_HistoryWithoutStore(t *testing.T) {
	v := remotecare.NewTestVault(t)
	_, err := v.History(context.Background(), audit.Filter{})
	assert.ErrorIs(t, err, remotecare.ErrInvalidConfiguration)
}
