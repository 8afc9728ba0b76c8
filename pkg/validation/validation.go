package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// UserIDRegex validates the id format issued by the identity provider.
var UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUserID validates a user id.
func ValidateUserID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	if len(id) > 64 {
		return fmt.Errorf("user id is too long (max 64 characters)")
	}
	if !UserIDRegex.MatchString(id) {
		return fmt.Errorf("user id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateCoordinates validates a latitude/longitude pair.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be in [-90, 90]")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be in [-180, 180]")
	}
	return nil
}

// ValidateAddress validates a pickup or dropoff address.
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if utf8.RuneCountInString(address) > 500 {
		return fmt.Errorf("address is too long (max 500 characters)")
	}
	return nil
}

// ValidateReason validates a free-text cancellation reason. Empty is allowed.
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > 1000 {
		return fmt.Errorf("reason is too long (max 1000 characters)")
	}
	return nil
}

// ValidateFare validates a fare estimate.
func ValidateFare(fare float64) error {
	if fare < 0 {
		return fmt.Errorf("fare must not be negative")
	}
	if fare > 100000 {
		return fmt.Errorf("fare is out of range")
	}
	return nil
}
