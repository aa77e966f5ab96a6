// Package account stores Remote Care users with their personal data
// encrypted by a remotecare Vault. Searchable fields carry an HMAC column so
// users can be found by email, name, BSN or hospital number without
// decrypting the table.
package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare/audit"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Title string

const (
	TitleMr   Title = "mr"
	TitleMs   Title = "ms"
	TitleDr   Title = "dr"
	TitleProf Title = "prof"
)

var titleDisplay = map[Title]string{
	TitleMr:   "Dhr.",
	TitleMs:   "Mevr.",
	TitleDr:   "Dr.",
	TitleProf: "Prof.",
}

// Display returns the salutation printed before a name.
func (t Title) Display() string {
	if d, ok := titleDisplay[t]; ok {
		return d
	}
	return string(t)
}

// User is a patient, healthprofessional, secretary or manager.
type User struct {
	ID    uint      `gorm:"primaryKey"`
	KeyID uuid.UUID `gorm:"not null" audit:"-"`

	FirstName          string `gorm:"-" rc:"encrypt,lookup=firstname_search"`
	FirstNameEncrypted string
	FirstNameHMAC      string `gorm:"index"`

	LastName          string `gorm:"-" rc:"encrypt,lookup=surname_search"`
	LastNameEncrypted string
	LastNameHMAC      string `gorm:"index"`

	Email          string `gorm:"-" rc:"encrypt,lookup=email_search,unique"`
	EmailEncrypted string
	EmailHMAC      string `gorm:"uniqueIndex"`

	BSN          string `gorm:"-" rc:"encrypt,lookup=bsn_search"`
	BSNEncrypted string
	BSNHMAC      string `gorm:"index"`

	LocalHospitalNumber          string `gorm:"-" rc:"encrypt,lookup=hospital_number_search"`
	LocalHospitalNumberEncrypted string
	LocalHospitalNumberHMAC      string `gorm:"index"`

	// No search on mobile numbers.
	MobileNumber          *string `gorm:"-" rc:"encrypt"`
	MobileNumberEncrypted string

	Title       Title  `gorm:"size:8"`
	Initials    string `gorm:"size:64"`
	Prefix      string `gorm:"size:64"`
	Gender      Gender `gorm:"size:8"`
	Hospital    string `gorm:"index"`
	DateOfBirth *time.Time

	IsStaff        bool
	IsActive       bool
	AccountBlocked bool

	Password   string `audit:"-"`
	DateJoined time.Time
	LastLogin  *time.Time `audit:"-"`
	DeletedOn  *time.Time

	audit.State `gorm:"-"`
}

func (u *User) EncryptionKeyID() uuid.UUID { return u.KeyID }

// FullName is first name, prefix and last name.
func (u *User) FullName() string {
	return joinName(u.FirstName, u.Prefix, u.LastName)
}

// ProfessionalName is title, initials, prefix and last name, e.g.
// "Dr. J.P. van Dijk".
func (u *User) ProfessionalName() string {
	first := u.Initials
	if u.Title != "" {
		first = u.Title.Display() + " " + u.Initials
	}
	return joinName(first, u.Prefix, u.LastName)
}

func (u *User) IsDeleted() bool { return u.DeletedOn != nil }

func joinName(first, prefix, last string) string {
	name := first
	if prefix != "" {
		name += " " + prefix
	}
	return name + " " + last
}

// LoginAttempt is stored for every login, successful or not. The username
// is kept as the email lookup HMAC only.
type LoginAttempt struct {
	ID           uint   `gorm:"primaryKey"`
	UsernameHash string `gorm:"index"`
	Successful   bool
	IPAddress    string `gorm:"size:128"`
	UserAgent    string
	ExtraInfo    string
	SessionID    string
	Date         time.Time `gorm:"index"`
}

// PasswordChangeRequest holds the HMACs of the key mailed to the user and
// of the SMS code sent after the user confirmed their details.
type PasswordChangeRequest struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index"`
	HMACEmailKey string `gorm:"uniqueIndex;size:256"`
	HMACSMSCode  string `gorm:"size:256"`
	AddedOn      time.Time
	AttemptNr    int
}

// RequestLifetimeDays is how many days a password change request stays valid.
const RequestLifetimeDays = 2

// ExpiryDate is the day the request stops being valid.
func (r *PasswordChangeRequest) ExpiryDate() time.Time {
	return day(r.AddedOn).AddDate(0, 0, RequestLifetimeDays)
}

// IsExpired reports whether the expiry date is today or earlier.
func (r *PasswordChangeRequest) IsExpired(now time.Time) bool {
	return !r.ExpiryDate().After(day(now.In(r.AddedOn.Location())))
}

// OldPassword keeps previous password hashes so a new password can be
// checked against them.
type OldPassword struct {
	ID           uint `gorm:"primaryKey"`
	UserID       uint `gorm:"index"`
	PasswordHash string
	DateAdded    time.Time
}

// Models lists the tables of the package in migration order.
func Models() []any {
	return []any{&User{}, &LoginAttempt{}, &PasswordChangeRequest{}, &OldPassword{}}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
