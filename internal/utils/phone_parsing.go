package utils

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// PhoneComponents represents the parsed components of a phone number
type PhoneComponents struct {
	CountryCode string `json:"country_code"`
	National    string `json:"national"`
	E164        string `json:"e164"`
	Region      string `json:"region"`
}

// ParsePhoneNumber parses a phone number string and returns its components.
// Numbers without an international prefix are assumed to be French.
func ParsePhoneNumber(phoneString string) (*PhoneComponents, error) {
	cleanPhone := strings.TrimSpace(phoneString)

	num, err := phonenumbers.Parse(cleanPhone, "FR")
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}

	if !phonenumbers.IsValidNumber(num) {
		return nil, fmt.Errorf("invalid phone number: %s", phoneString)
	}

	return &PhoneComponents{
		CountryCode: fmt.Sprintf("%d", num.GetCountryCode()),
		National:    phonenumbers.GetNationalSignificantNumber(num),
		E164:        phonenumbers.Format(num, phonenumbers.E164),
		Region:      phonenumbers.GetRegionCodeForNumber(num),
	}, nil
}

// RegionAllowed reports whether the number's region is in the allow-list
func RegionAllowed(components *PhoneComponents, allowList []string) bool {
	for _, region := range allowList {
		if strings.EqualFold(region, components.Region) {
			return true
		}
	}
	return false
}
