package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotSame(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		previous any
		current  any
		want     bool
	}{
		{name: "nil to empty string", previous: nil, current: "", want: true},
		{name: "nil to nil", previous: nil, current: nil, want: false},
		{name: "same string", previous: "Jansen", current: "Jansen", want: false},
		{name: "changed string", previous: "Jansen", current: "Janssen", want: true},
		{name: "empty to nil", previous: "", current: nil, want: true},
		{name: "same bool", previous: true, current: true, want: false},
		{name: "same instant other zone", previous: now, current: now.UTC(), want: false},
		{name: "other instant", previous: now, current: now.Add(time.Second), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotSame(tt.previous, tt.current))
		})
	}
}

func TestDiff(t *testing.T) {
	initial := map[string]any{"first_name": "Jan", "last_name": "Jansen", "prefix": nil}
	current := map[string]any{"first_name": "Jan", "last_name": "Janssen", "prefix": ""}

	assert.ElementsMatch(t, []string{"last_name", "prefix"}, Diff(initial, current))
	assert.Empty(t, Diff(initial, initial))
}

func TestEntry(t *testing.T) {
	keyID := uuid.New()
	e, err := NewEntry(Record{
		Module:  "github.com/hengadev/remotecare/account",
		Name:    "User",
		Changes: map[string]any{"last_name": "AES256CBC$abc", "is_staff": false},
		Added:   true,
	}, "42", &keyID)
	require.NoError(t, err)

	assert.Equal(t, `{"module":"github.com/hengadev/remotecare/account","name":"User","id":null,"changes":{"is_staff":false,"last_name":"AES256CBC$abc"},"added":true}`, e.JSON)
	assert.True(t, e.Added())

	require.NoError(t, e.SetObjectID(7))
	assert.Equal(t, "7", e.ObjectID())

	module, name := e.Object()
	assert.Equal(t, "github.com/hengadev/remotecare/account", module)
	assert.Equal(t, "User", name)

	v, ok := e.Change("last_name")
	require.True(t, ok)
	assert.Equal(t, "AES256CBC$abc", v.String())

	_, ok = e.Change("email")
	assert.False(t, ok)

	rec, err := e.Record()
	require.NoError(t, err)
	assert.Equal(t, float64(7), rec.ID)
	assert.Len(t, rec.Changes, 2)
}

func TestFilter_Match(t *testing.T) {
	e, err := NewEntry(Record{Module: "m", Name: "User", ID: "u1"}, "admin", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty", filter: Filter{}, want: true},
		{name: "name", filter: Filter{Name: "User"}, want: true},
		{name: "other name", filter: Filter{Name: "Report"}, want: false},
		{name: "object", filter: Filter{Module: "m", Name: "User", ObjectID: "u1"}, want: true},
		{name: "other object", filter: Filter{ObjectID: "u2"}, want: false},
		{name: "added by", filter: Filter{AddedBy: "nurse"}, want: false},
		{name: "since later", filter: Filter{Since: e.AddedOn.Add(time.Minute)}, want: false},
		{name: "until later", filter: Filter{Until: e.AddedOn.Add(time.Minute)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(e))
		})
	}
}

func TestState(t *testing.T) {
	type record struct {
		State
		Name string
	}
	var r record
	var a Auditable = &r

	_, ok := a.AuditState().Initial()
	assert.False(t, ok)

	values := map[string]any{"name": "x"}
	a.AuditState().Snapshot(values)
	values["name"] = "y"
	initial, ok := r.Initial()
	require.True(t, ok)
	assert.Equal(t, "x", initial["name"])

	r.SetChangedBy("7")
	assert.Equal(t, "7", r.ChangedBy())
	r.Disable()
	assert.True(t, r.Disabled())
	r.Enable()
	assert.False(t, r.Disabled())
}
