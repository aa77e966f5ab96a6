package report_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/account"
	"github.com/hengadev/remotecare/audit"
	"github.com/hengadev/remotecare/integration/gormrc"
	"github.com/hengadev/remotecare/internal/monitoring"
	s3bucket "github.com/hengadev/remotecare/providers/s3"
	"github.com/hengadev/remotecare/report"
	"github.com/hengadev/remotecare/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *bucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *bucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[*in.Key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (b *bucket) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fixture struct {
	svc    *report.Service
	vault  *remotecare.Vault
	audit  *memory.AuditStore
	bucket *bucket
	author *account.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := memory.NewAuditStore()
	v := remotecare.NewTestVault(t, remotecare.WithAuditStore(store))
	db, err := gormrc.Open("sqlite", filepath.Join(t.TempDir(), "report.db"), v, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	b := &bucket{objects: map[string][]byte{}}
	files := s3bucket.NewWithClient(b, v, s3bucket.Config{Bucket: "reports", Prefix: "reports/"})
	svc := report.NewService(db, files, monitoring.Discard())
	require.NoError(t, svc.Migrate(context.Background()))

	key, err := v.CreateEncryptionKey(context.Background(), "account:professional")
	require.NoError(t, err)
	author := &account.User{ID: 7, KeyID: key.ID, LastName: "Dijk"}
	return fixture{svc: svc, vault: v, audit: store, bucket: b, author: author}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := remotecare.WithActor(context.Background(), "7")

	r := &report.Report{QuestionnaireRequestID: 3, Text: "Conclusie: rustige ziekte"}
	require.NoError(t, f.svc.Create(ctx, r, f.author))
	assert.Equal(t, f.author.KeyID, r.KeyID)
	assert.Equal(t, uint(7), r.CreatedByID)
	assert.True(t, f.vault.IsEncrypted(r.TextEncrypted))
	assert.NotContains(t, r.TextEncrypted, "Conclusie")

	loaded, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Conclusie: rustige ziekte", loaded.Text)
	assert.False(t, loaded.FilledIn())

	entries, err := f.vault.History(ctx, audit.Filter{Name: "Report"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].EncryptionKeyID)
	assert.Equal(t, f.author.KeyID, *entries[0].EncryptionKeyID)

	changes, err := f.vault.AuditChanges(ctx, entries[0])
	require.NoError(t, err)
	assert.Equal(t, "Conclusie: rustige ziekte", changes["text"])

	t.Run("author without key", func(t *testing.T) {
		err := f.svc.Create(ctx, &report.Report{Text: "x"}, &account.User{ID: 8})
		assert.ErrorIs(t, err, remotecare.ErrMissingEncryptionKey)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.svc.Get(ctx, 404)
		assert.ErrorIs(t, err, report.ErrReportNotFound)
	})
}

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "filled in", text: "Conclusie: geen bijzonderheden", wantErr: false},
		{name: "empty", text: "", wantErr: false},
		{name: "conclusion missing", text: "Beleid: controle\n--Vul conclusie in--", wantErr: true},
		{name: "crp missing", text: "CRP: --Vul CRP waarde in--", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := report.ValidateText(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, report.ErrUnfilledPlaceholder)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_UpdateAndFinish(t *testing.T) {
	f := setup(t)
	ctx := remotecare.WithActor(context.Background(), "7")

	r := &report.Report{QuestionnaireRequestID: 3, Text: "Conclusie: --Vul conclusie in--"}
	assert.ErrorIs(t, f.svc.Create(ctx, r, f.author), report.ErrUnfilledPlaceholder)

	r.Text = "Conclusie: stabiel"
	require.NoError(t, f.svc.Create(ctx, r, f.author))

	loaded, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	loaded.Text = "Conclusie: stabiel, controle over 3 maanden"
	loaded.SentToDoctor = true
	require.NoError(t, f.svc.Update(ctx, loaded))
	require.NoError(t, f.svc.Finish(ctx, loaded))
	assert.ErrorIs(t, f.svc.Finish(ctx, loaded), report.ErrFinished)

	entries, err := f.vault.History(ctx, audit.Filter{Name: "Report"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	changes, err := f.vault.AuditChanges(ctx, entries[1])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"text":           "Conclusie: stabiel, controle over 3 maanden",
		"sent_to_doctor": true,
	}, changes)

	reloaded, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.FilledIn())
}

func TestService_ForQuestionnaire(t *testing.T) {
	f := setup(t)
	ctx := remotecare.WithActor(context.Background(), "7")

	first := &report.Report{QuestionnaireRequestID: 3, Text: "eerste"}
	invalid := &report.Report{QuestionnaireRequestID: 3, Text: "ongeldig", Invalid: true}
	other := &report.Report{QuestionnaireRequestID: 4, Text: "ander"}
	for _, r := range []*report.Report{first, invalid, other} {
		require.NoError(t, f.svc.Create(ctx, r, f.author))
	}

	reports, err := f.svc.ForQuestionnaire(ctx, 3)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, first.ID, reports[0].ID)
	assert.Equal(t, "eerste", reports[0].Text)
}

func TestService_Attachment(t *testing.T) {
	f := setup(t)
	ctx := remotecare.WithActor(context.Background(), "7")

	r := &report.Report{QuestionnaireRequestID: 3, Text: "met bijlage"}
	require.NoError(t, f.svc.Create(ctx, r, f.author))

	var out bytes.Buffer
	assert.ErrorIs(t, f.svc.Attachment(ctx, r, &out), report.ErrNoAttachment)

	lab := strings.Repeat("calprotectine 250 ug/g\n", 500)
	require.NoError(t, f.svc.Attach(ctx, r, strings.NewReader(lab), "text/plain"))
	first := r.AttachmentKey
	require.True(t, strings.HasPrefix(first, "reports/"))
	assert.NotContains(t, string(f.bucket.objects[first]), "calprotectine")

	require.NoError(t, f.svc.Attachment(ctx, r, &out))
	assert.Equal(t, lab, out.String())

	require.NoError(t, f.svc.Attach(ctx, r, strings.NewReader("nieuwe uitslag"), "text/plain"))
	assert.NotEqual(t, first, r.AttachmentKey)
	assert.NotContains(t, f.bucket.objects, first)
	assert.Len(t, f.bucket.objects, 1)

	loaded, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, f.svc.Attachment(ctx, loaded, &out))
	assert.Equal(t, "nieuwe uitslag", out.String())
}

func TestService_AttachWithoutStore(t *testing.T) {
	svc := report.NewService(nil, nil, nil)
	r := &report.Report{KeyID: uuid.New(), AttachmentKey: "reports/x"}
	assert.ErrorIs(t, svc.Attach(context.Background(), r, strings.NewReader("x"), "text/plain"), remotecare.ErrInvalidConfiguration)
	assert.ErrorIs(t, svc.Attachment(context.Background(), r, io.Discard), remotecare.ErrInvalidConfiguration)
}
