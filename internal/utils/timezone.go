package utils

import (
	"strings"
	"time"
)

// overseasTimezones maps overseas residency code prefixes to their timezone.
// A person turns an age at local midnight in their residency, not at UTC
// midnight, so the effective day boundary shifts with these.
var overseasTimezones = map[string]string{
	"971": "America/Guadeloupe",
	"972": "America/Martinique",
	"973": "America/Cayenne",
	"974": "Indian/Reunion",
	"975": "America/Miquelon",
	"976": "Indian/Mayotte",
	"986": "Pacific/Wallis",
	"987": "Pacific/Tahiti",
	"988": "Pacific/Noumea",
}

// LocationForResidency returns the timezone implied by a residency code.
// Unknown or metropolitan codes resolve to Europe/Paris.
func LocationForResidency(residencyCode string) *time.Location {
	code := strings.TrimSpace(residencyCode)
	for prefix, name := range overseasTimezones {
		if strings.HasPrefix(code, prefix) {
			if loc, err := time.LoadLocation(name); err == nil {
				return loc
			}
			break
		}
	}
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.UTC
	}
	return loc
}

// AgeAt computes the age in whole years at the given instant, evaluated in
// the given location's calendar. The birth date is a calendar date: its
// year/month/day are read as stored, never zone-converted, which would shift
// the day one back for western residencies.
func AgeAt(birthDate time.Time, at time.Time, loc *time.Location) int {
	local := at.In(loc)
	birthYear, birthMonth, birthDay := birthDate.Date()

	age := local.Year() - birthYear
	// Birthday not reached yet this year
	if local.Month() < birthMonth || (local.Month() == birthMonth && local.Day() < birthDay) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// NthBirthday returns the local-midnight instant at which the person turns n
// in the given location. Like AgeAt it reads the birth date's calendar day
// as stored.
func NthBirthday(birthDate time.Time, n int, loc *time.Location) time.Time {
	birthYear, birthMonth, birthDay := birthDate.Date()
	return time.Date(birthYear+n, birthMonth, birthDay, 0, 0, 0, 0, loc)
}
