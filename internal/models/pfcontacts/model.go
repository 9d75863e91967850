package pfcontacts

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Contact représente un message envoyé via le formulaire de contact
type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null;index" json:"email"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Stats résume les soumissions, les fenêtres sont glissantes depuis maintenant
type Stats struct {
	TotalSubmissions int64 `json:"total_submissions"`
	ThisWeek         int64 `json:"this_week"`
	Today            int64 `json:"today"`
}

// ValidationError porte un message destiné à l'utilisateur
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrMissingFields = &ValidationError{Message: "All fields are required"}
	ErrInvalidEmail  = &ValidationError{Message: "Please enter a valid email address"}
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// New valide les champs du formulaire et construit le contact
func New(name, email, message, userAgent, ipAddress string) (*Contact, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	message = strings.TrimSpace(message)

	if name == "" || email == "" || message == "" {
		return nil, ErrMissingFields
	}
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	return &Contact{
		Name:      name,
		Email:     email,
		Message:   message,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}, nil
}

// IsValidationError indique si err vient de la validation du formulaire
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// windows calcule les bornes "cette semaine" et "aujourd'hui"
func windows(now time.Time) (week time.Time, day time.Time) {
	return now.Add(-7 * 24 * time.Hour), now.Add(-24 * time.Hour)
}
