package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/integration/gormrc"
	"github.com/hengadev/remotecare/internal/hash"
	"github.com/hengadev/remotecare/internal/random"
	"github.com/mssola/useragent"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email address already registered")
	ErrInvalidUser        = errors.New("invalid user")
	ErrInvalidCredentials = errors.New("invalid email address or password")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrAccountInactive    = errors.New("account inactive or deleted")
	ErrRequestNotFound    = errors.New("password change request not found")
	ErrRequestExpired     = errors.New("password change request expired")
	ErrInvalidCode        = errors.New("invalid sms code")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrPasswordReused     = errors.New("password used before")
)

const (
	// EmailKeyLength is the length of the key mailed for a password change.
	EmailKeyLength = 40

	// MaxCodeAttempts is the number of wrong SMS codes a request survives.
	MaxCodeAttempts = 3

	// PasswordHistory is how many previous passwords may not be reused.
	PasswordHistory = 5

	DefaultBlockAttempts = 30
	DefaultBlockWindow   = 30 * time.Minute
)

// unusablePassword never matches an argon2 hash.
const unusablePassword = "!"

// LoginMeta describes the client of a login attempt.
type LoginMeta struct {
	IPAddress string
	UserAgent string
	SessionID string
}

// Service manages users and their credentials.
type Service struct {
	db            *gorm.DB
	vault         *remotecare.Vault
	logger        *slog.Logger
	now           func() time.Time
	params        *hash.Argon2Params
	blockAttempts int
	blockWindow   time.Duration
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBlockPolicy blocks an account after attempts failed logins within
// window. The account is released once a window passes without failures.
func WithBlockPolicy(attempts int, window time.Duration) Option {
	return func(s *Service) {
		s.blockAttempts = attempts
		s.blockWindow = window
	}
}

// NewService returns a Service on db. The gormrc plugin for v must be
// installed on db.
func NewService(db *gorm.DB, v *remotecare.Vault, opts ...Option) *Service {
	s := &Service{
		db:            db,
		vault:         v,
		logger:        slog.Default(),
		now:           func() time.Time { return time.Now().UTC() },
		params:        hash.DefaultArgon2Params(),
		blockAttempts: DefaultBlockAttempts,
		blockWindow:   DefaultBlockWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the tables of the package.
func (s *Service) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

// Register creates the personal key of u and stores u. An empty password
// leaves the account without a usable password until a password change.
func (s *Service) Register(ctx context.Context, u *User, password string) error {
	if u.ID != 0 {
		return fmt.Errorf("%w: already stored", ErrInvalidUser)
	}
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" || u.LastName == "" {
		return fmt.Errorf("%w: email and last name are required", ErrInvalidUser)
	}
	if _, err := s.ByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	key, err := s.vault.CreateEncryptionKey(ctx, "account:"+uuid.NewString())
	if err != nil {
		return fmt.Errorf("create personal key: %w", err)
	}
	u.KeyID = key.ID
	if err := s.setPassword(u, password); err != nil {
		return err
	}
	u.IsActive = true
	u.DateJoined = s.now()

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		s.logger.WarnContext(ctx, "personal key without user", "key_id", key.ID, "error", err)
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Service) ByID(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

// ByEmail finds a user by the lookup column of their email address.
func (s *Service) ByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	db := gormrc.WhereLookup(s.db.WithContext(ctx), s.vault, &User{}, "Email", normalizeEmail(email))
	if err := db.First(&u).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

// SearchLastName returns the users with lastName that are not deleted,
// limited to hospital unless it is empty.
func (s *Service) SearchLastName(ctx context.Context, lastName, hospital string) ([]User, error) {
	db := gormrc.WhereLookup(s.db.WithContext(ctx), s.vault, &User{}, "LastName", lastName).
		Where("deleted_on IS NULL")
	if hospital != "" {
		db = db.Where("hospital = ?", hospital)
	}
	var users []User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Update saves u. The audit entry names the acting user of ctx.
func (s *Service) Update(ctx context.Context, u *User) error {
	if u.ID == 0 {
		return fmt.Errorf("%w: not stored", ErrInvalidUser)
	}
	u.Email = normalizeEmail(u.Email)
	return s.db.WithContext(ctx).Save(u).Error
}

// Delete marks u as deleted and inactive. The row and its key are kept for
// the audit trail.
func (s *Service) Delete(ctx context.Context, u *User) error {
	if u.IsDeleted() {
		return nil
	}
	now := s.now()
	u.DeletedOn = &now
	u.IsActive = false
	return s.Update(ctx, u)
}

// Authenticate checks the credentials of email and records the attempt.
// Repeated failures block the account; see WithBlockPolicy.
func (s *Service) Authenticate(ctx context.Context, email, password string, meta LoginMeta) (*User, error) {
	u, err := s.ByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ctx = remotecare.WithActor(ctx, strconv.FormatUint(uint64(u.ID), 10))

	if u.AccountBlocked {
		if err := s.releaseBlock(ctx, u); err != nil {
			return nil, err
		}
		if u.AccountBlocked {
			return nil, ErrAccountBlocked
		}
	}

	ok, err := s.checkPassword(u, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.loginFailed(ctx, u, email, meta)
	}
	if !u.IsActive || u.IsDeleted() {
		return nil, ErrAccountInactive
	}

	if err := s.RecordLoginAttempt(ctx, email, true, meta); err != nil {
		return nil, err
	}
	now := s.now()
	u.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(u).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) loginFailed(ctx context.Context, u *User, email string, meta LoginMeta) error {
	n, err := s.failedAttempts(ctx, email)
	if err != nil {
		return err
	}
	if s.blockAttempts > 0 && n+1 >= int64(s.blockAttempts) {
		u.AccountBlocked = true
		if err := s.Update(ctx, u); err != nil {
			return err
		}
		s.logger.WarnContext(ctx, "account blocked", "user_id", u.ID, "failed_attempts", n+1)
	}
	if err := s.RecordLoginAttempt(ctx, email, false, meta); err != nil {
		return err
	}
	if u.AccountBlocked {
		return ErrAccountBlocked
	}
	return ErrInvalidCredentials
}

// releaseBlock unblocks u when no login failed during the last window.
func (s *Service) releaseBlock(ctx context.Context, u *User) error {
	n, err := s.failedAttempts(ctx, u.Email)
	if err != nil || n > 0 {
		return err
	}
	u.AccountBlocked = false
	return s.Update(ctx, u)
}

func (s *Service) failedAttempts(ctx context.Context, email string) (int64, error) {
	digest, err := s.usernameHash(ctx, email)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(&LoginAttempt{}).
		Where("username_hash = ? AND successful = ? AND date >= ?", digest, false, s.now().Add(-s.blockWindow)).
		Count(&n).Error
	return n, err
}

// RecordLoginAttempt stores an attempt to log in as email.
func (s *Service) RecordLoginAttempt(ctx context.Context, email string, successful bool, meta LoginMeta) error {
	digest, err := s.usernameHash(ctx, email)
	if err != nil {
		return err
	}
	attempt := LoginAttempt{
		UsernameHash: digest,
		Successful:   successful,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		ExtraInfo:    describeAgent(meta.UserAgent),
		SessionID:    meta.SessionID,
		Date:         s.now(),
	}
	return s.db.WithContext(ctx).Create(&attempt).Error
}

// LoginAttempts returns the attempts for email, newest first.
func (s *Service) LoginAttempts(ctx context.Context, email string) ([]LoginAttempt, error) {
	digest, err := s.usernameHash(ctx, email)
	if err != nil {
		return nil, err
	}
	var attempts []LoginAttempt
	err = s.db.WithContext(ctx).Where("username_hash = ?", digest).Order("date DESC, id DESC").Find(&attempts).Error
	return attempts, err
}

func (s *Service) usernameHash(ctx context.Context, email string) (string, error) {
	return s.vault.HMAC(ctx, remotecare.SearchKeyEmail, normalizeEmail(email))
}

// describeAgent summarises a User-Agent header as browser#os[#mobile][#bot].
func describeAgent(header string) string {
	if header == "" {
		return ""
	}
	ua := useragent.New(header)
	name, version := ua.Browser()
	parts := []string{strings.TrimSpace(name + " " + version), ua.OS()}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}
	if ua.Bot() {
		parts = append(parts, "bot")
	}
	return strings.Join(parts, "#")
}

// RequestPasswordChange replaces the pending requests of u with a new one
// and disables the current password. The returned key is mailed to the user
// and is only stored as an HMAC.
func (s *Service) RequestPasswordChange(ctx context.Context, u *User) (string, error) {
	emailKey, err := random.Base(EmailKeyLength, random.DefaultChoices)
	if err != nil {
		return "", err
	}
	digest, err := s.vault.HMAC(ctx, remotecare.PurposeKeyEmail, emailKey)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", u.ID).Delete(&PasswordChangeRequest{}).Error; err != nil {
			return err
		}
		req := PasswordChangeRequest{UserID: u.ID, HMACEmailKey: digest, AddedOn: s.now()}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		u.Password = unusablePassword
		return tx.Model(u).Update("password", unusablePassword).Error
	})
	if err != nil {
		return "", fmt.Errorf("request password change: %w", err)
	}
	return emailKey, nil
}

// SendPasswordChangeCode checks the details the user entered for the
// request of emailKey and returns a new SMS code for it. The code is stored
// as an HMAC only.
func (s *Service) SendPasswordChangeCode(ctx context.Context, emailKey, email string, dateOfBirth time.Time) (string, *User, error) {
	req, err := s.passwordChangeRequest(ctx, emailKey)
	if err != nil {
		return "", nil, err
	}
	u, err := s.ByID(ctx, req.UserID)
	if err != nil {
		return "", nil, err
	}
	if u.Email != normalizeEmail(email) || u.DateOfBirth == nil || !day(*u.DateOfBirth).Equal(day(dateOfBirth.In(u.DateOfBirth.Location()))) {
		return "", nil, ErrInvalidCredentials
	}

	code, err := random.Key()
	if err != nil {
		return "", nil, err
	}
	digest, err := s.vault.HMAC(ctx, remotecare.PurposeKeySMS, code)
	if err != nil {
		return "", nil, err
	}
	err = s.db.WithContext(ctx).Model(req).Updates(map[string]any{"hmac_sms_code": digest, "attempt_nr": 0}).Error
	if err != nil {
		return "", nil, err
	}
	return code, u, nil
}

// VerifyPasswordChange sets password for the user of the request when
// smsCode matches. The request is removed on success, after MaxCodeAttempts
// wrong codes and when it expired.
func (s *Service) VerifyPasswordChange(ctx context.Context, emailKey, smsCode, password string) error {
	req, err := s.passwordChangeRequest(ctx, emailKey)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)

	ok := false
	if req.HMACSMSCode != "" {
		if ok, err = s.vault.CheckHMAC(ctx, remotecare.PurposeKeySMS, smsCode, req.HMACSMSCode); err != nil {
			return err
		}
	}
	if !ok {
		req.AttemptNr++
		if req.AttemptNr >= MaxCodeAttempts {
			if err := db.Delete(req).Error; err != nil {
				return err
			}
			return ErrTooManyAttempts
		}
		if err := db.Model(req).Update("attempt_nr", req.AttemptNr).Error; err != nil {
			return err
		}
		return ErrInvalidCode
	}

	u, err := s.ByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if err := s.checkReuse(ctx, u.ID, password); err != nil {
		return err
	}
	if err := s.setPassword(u, password); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(u).Update("password", u.Password).Error; err != nil {
			return err
		}
		old := OldPassword{UserID: u.ID, PasswordHash: u.Password, DateAdded: s.now()}
		if err := tx.Create(&old).Error; err != nil {
			return err
		}
		return tx.Delete(req).Error
	})
}

// passwordChangeRequest finds the request of emailKey. Expired requests are
// removed.
func (s *Service) passwordChangeRequest(ctx context.Context, emailKey string) (*PasswordChangeRequest, error) {
	digest, err := s.vault.HMAC(ctx, remotecare.PurposeKeyEmail, emailKey)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var req PasswordChangeRequest
	if err := db.Where("hmac_email_key = ?", digest).First(&req).Error; err != nil {
		return nil, notFound(err, ErrRequestNotFound)
	}
	if req.IsExpired(s.now()) {
		if err := db.Delete(&req).Error; err != nil {
			return nil, err
		}
		return nil, ErrRequestExpired
	}
	return &req, nil
}

func (s *Service) checkReuse(ctx context.Context, userID uint, password string) error {
	var old []OldPassword
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("date_added DESC, id DESC").Limit(PasswordHistory).Find(&old).Error
	if err != nil {
		return err
	}
	for _, o := range old {
		if same, _ := hash.ComparePassword(password, o.PasswordHash); same {
			return ErrPasswordReused
		}
	}
	return nil
}

func (s *Service) setPassword(u *User, password string) error {
	if password == "" {
		u.Password = unusablePassword
		return nil
	}
	encoded, err := hash.HashPassword(password, s.params)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = encoded
	return nil
}

func (s *Service) checkPassword(u *User, password string) (bool, error) {
	if password == "" || u.Password == "" || u.Password == unusablePassword {
		return false, nil
	}
	return hash.ComparePassword(password, u.Password)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
