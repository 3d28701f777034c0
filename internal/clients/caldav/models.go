package caldav

import "time"

// Calendar is a collection on the CalDAV server
type Calendar struct {
	Path        string
	DisplayName string
}

// Event is one VEVENT as kalendarbot writes it
type Event struct {
	UID         string
	Summary     string
	Description string
	Category    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
}
