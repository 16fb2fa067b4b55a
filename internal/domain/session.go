package domain

import "time"

// DeviceSession is a login session scoped to one physical device.
type DeviceSession struct {
	ID             string
	UserID         string
	DeviceID       string
	DeviceName     string
	Platform       string
	Role           Role
	IsActive       bool
	LastActivityAt time.Time
	CreatedAt      time.Time
}

// WorkSession is one online interval of a driver. A zero EndTime means the driver is online.
type WorkSession struct {
	ID        string
	DriverID  string
	StartTime time.Time
	EndTime   time.Time
}

// Open reports whether the session has not been ended.
func (w *WorkSession) Open() bool {
	return w.EndTime.IsZero()
}
