package units

import (
	"fmt"
	"strings"
	"time"
)

// CommonTimezones is a curated list of timezones offered when creating a
// venue. Nightlife reporting is hour-of-day sensitive, so venues must
// carry a real tz database zone rather than a fixed offset.
var CommonTimezones = []string{
	"Pacific/Honolulu",    // -10:00
	"America/Anchorage",   // -09:00/-08:00
	"America/Los_Angeles", // -08:00/-07:00
	"America/Denver",      // -07:00/-06:00
	"America/Phoenix",     // -07:00
	"America/Chicago",     // -06:00/-05:00
	"America/Mexico_City", // -06:00
	"America/New_York",    // -05:00/-04:00
	"America/Sao_Paulo",   // -03:00
	"UTC",                 // +00:00
	"Europe/Dublin",       // +00:00/+01:00
	"Europe/Berlin",       // +01:00/+02:00
	"Europe/Athens",       // +02:00/+03:00
	"Asia/Dubai",          // +04:00
	"Asia/Kolkata",        // +05:30
	"Asia/Bangkok",        // +07:00
	"Asia/Singapore",      // +08:00
	"Asia/Seoul",          // +09:00
	"Australia/Sydney",    // +10:00/+11:00
	"Pacific/Auckland",    // +12:00/+13:00
}

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database
// This validates against the actual system tz database rather than a hardcoded list
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// IsCommonTimezone checks if the given timezone is in our curated list of common timezones
func IsCommonTimezone(tz string) bool {
	for _, commonTz := range CommonTimezones {
		if tz == commonTz {
			return true
		}
	}
	return false
}

// GetValidTimezonesString returns a comma-separated string of common timezones for error messages
func GetValidTimezonesString() string {
	return strings.Join(CommonTimezones, ", ")
}

// ConvertTime converts a UTC time to the specified timezone
// Database stores all times in UTC, this function converts them for display
func ConvertTime(utcTime time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "UTC" {
		return utcTime, nil // No conversion needed
	}

	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return utcTime, fmt.Errorf("failed to load timezone %s: %w", targetTimezone, err)
	}

	return utcTime.In(loc), nil
}
