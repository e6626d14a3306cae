package types

import (
	"regexp"
)

// languageCodePattern accepts BCP 47 style tags such as "en", "es-419" or
// "pt-BR". Subtag casing is not enforced; providers normalize as needed.
var languageCodePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// IsValidRole reports whether role is one of the two supported roles.
func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}

// IsValidLanguageCode reports whether code looks like a usable language tag.
func IsValidLanguageCode(code string) bool {
	return languageCodePattern.MatchString(code)
}

// IsValidEventType reports whether t is an inbound event type the router
// understands.
func IsValidEventType(t string) bool {
	switch t {
	case EventRegister, EventTranscription, EventAudio, EventSettings:
		return true
	default:
		return false
	}
}
