package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_Names(t *testing.T) {
	tests := []struct {
		name         string
		user         User
		full         string
		professional string
	}{
		{
			name:         "with prefix and title",
			user:         User{FirstName: "Jan", Prefix: "van", LastName: "Dijk", Initials: "J.P.", Title: TitleDr},
			full:         "Jan van Dijk",
			professional: "Dr. J.P. van Dijk",
		},
		{
			name:         "without prefix",
			user:         User{FirstName: "Anna", LastName: "Bakker", Initials: "A.", Title: TitleMs},
			full:         "Anna Bakker",
			professional: "Mevr. A. Bakker",
		},
		{
			name:         "without title",
			user:         User{FirstName: "Piet", Prefix: "de", LastName: "Vries", Initials: "P."},
			full:         "Piet de Vries",
			professional: "P. de Vries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.full, tt.user.FullName())
			assert.Equal(t, tt.professional, tt.user.ProfessionalName())
		})
	}
}

func TestUser_IsDeleted(t *testing.T) {
	u := User{}
	assert.False(t, u.IsDeleted())
	now := time.Now()
	u.DeletedOn = &now
	assert.True(t, u.IsDeleted())
}

func TestPasswordChangeRequest_IsExpired(t *testing.T) {
	req := PasswordChangeRequest{AddedOn: time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), req.ExpiryDate())

	tests := []struct {
		now  time.Time
		want bool
	}{
		{now: time.Date(2026, 10, 14, 16, 0, 0, 0, time.UTC), want: false},
		{now: time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC), want: false},
		{now: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), want: true},
		{now: time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format(time.RFC3339), func(t *testing.T) {
			assert.Equal(t, tt.want, req.IsExpired(tt.now))
		})
	}
}

func TestTitle_Display(t *testing.T) {
	assert.Equal(t, "Prof.", TitleProf.Display())
	assert.Equal(t, "Dhr.", TitleMr.Display())
	assert.Equal(t, "ir", Title("ir").Display())
}
