package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of them.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
)

// Error is a service error carrying a user-facing message and its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap lets errors.Is match the kind.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

var (
	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = newError(ErrValidation, "invalid ride id")

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = newError(ErrValidation, "invalid user id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = newError(ErrValidation, "invalid driver id")

	// ErrInvalidPassengerID is returned when passenger ID is empty.
	ErrInvalidPassengerID = newError(ErrValidation, "invalid passenger id")

	// ErrInvalidDeviceID is returned when device ID is empty.
	ErrInvalidDeviceID = newError(ErrValidation, "invalid device id")

	// ErrInvalidPinFormat is returned when an entered PIN is not four digits.
	ErrInvalidPinFormat = newError(ErrValidation, "PIN must be exactly 4 digits")

	ErrInvalidRole        = newError(ErrValidation, "invalid role")
	ErrInvalidAccountType = newError(ErrValidation, "invalid account type")
	ErrInvalidRating      = newError(ErrValidation, "rating must be between 1 and 5")
	ErrInvalidFare        = newError(ErrValidation, "estimated fare must not be negative")
	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid phone number or password")
	ErrInvalidToken       = newError(ErrUnauthorized, "invalid or expired token")
	ErrSessionInactive    = newError(ErrUnauthorized, "session is no longer active, log in again")
	ErrMissingSignUpField = newError(ErrValidation, "name, phone number and password are required")

	ErrRideNotFound = newError(ErrNotFound, "ride not found")
	ErrUserNotFound = newError(ErrNotFound, "user not found")

	ErrNoOpenWorkSession = newError(ErrNotFound, "no open work session")

	// ErrNoOngoingTrip is returned when the passenger has no trip with an open end time.
	ErrNoOngoingTrip = newError(ErrNotFound, "no ongoing trip found")

	ErrNotRideParticipant = newError(ErrUnauthorized, "not authorized to modify this ride")
	ErrNotAssignedDriver  = newError(ErrUnauthorized, "only the assigned driver can perform this action")
	ErrNotRidePassenger   = newError(ErrUnauthorized, "only the ride's passenger can perform this action")
	ErrNotTargetedDriver  = newError(ErrUnauthorized, "this ride was requested from another driver")
	ErrNotTripParticipant = newError(ErrUnauthorized, "only the trip's passenger or driver can end it")

	ErrRideNotRequested  = newError(ErrInvalidState, "ride is not in requested state")
	ErrRideNotAccepted   = newError(ErrInvalidState, "ride is not in accepted state")
	ErrRideNotInProgress = newError(ErrInvalidState, "ride is not in progress")
	ErrRideFinished      = newError(ErrInvalidState, "ride is already finished")
	ErrRideNotCompleted  = newError(ErrInvalidState, "ride is not completed")

	// ErrPinLocked is returned once the maximum number of wrong PIN entries is reached.
	ErrPinLocked = newError(ErrInvalidState, "too many incorrect PIN attempts, ask for a new PIN")

	// ErrEstimatedFareMissing is returned when the trip's ride carries no estimated fare.
	ErrEstimatedFareMissing = newError(ErrInvalidState, "estimated fare missing for the ride linked to this trip")

	ErrNotActingAsDriver    = newError(ErrInvalidState, "switch to driver mode to accept rides")
	ErrNotActingAsPassenger = newError(ErrInvalidState, "switch to passenger mode to request rides")
	ErrRoleNotAllowed       = newError(ErrInvalidState, "account type does not allow this role")
	ErrAccountNotBoth       = newError(ErrInvalidState, "account does not hold both roles")
	ErrAccountAlreadyBoth   = newError(ErrInvalidState, "account already holds both roles")

	ErrActiveRidesAsDriver    = newError(ErrInvalidState, "Cannot switch to passenger mode while you have active rides as a driver")
	ErrActiveRidesAsPassenger = newError(ErrInvalidState, "Cannot switch to driver mode while you have active rides as a passenger")

	// ErrDeviceConflict is returned when a driver is already logged in on another device.
	ErrDeviceConflict = newError(ErrConflict, "already active on another device")

	// ErrDeviceTaken is returned when a device is signed in to another account.
	ErrDeviceTaken = newError(ErrConflict, "device is signed in to another account")

	ErrTripAlreadyOngoing = newError(ErrConflict, "passenger already has an ongoing trip")
	ErrActiveRideExists   = newError(ErrConflict, "passenger already has an active ride")
	ErrPhoneTaken         = newError(ErrConflict, "phone number already registered")
	ErrFeedbackExists     = newError(ErrConflict, "feedback already submitted for this ride")
	ErrBusy               = newError(ErrConflict, "another request for this resource is in progress")
	ErrPinReplaced        = newError(ErrConflict, "PIN was replaced, enter the new PIN")
)
