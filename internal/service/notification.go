package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxitap/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideRequested    NotificationType = "RIDE_REQUESTED"
	NotificationRideAccepted     NotificationType = "RIDE_ACCEPTED"
	NotificationPinRegenerated   NotificationType = "PIN_REGENERATED"
	NotificationRideStarted      NotificationType = "RIDE_STARTED"
	NotificationRideCompleted    NotificationType = "RIDE_COMPLETED"
	NotificationRideCancelled    NotificationType = "RIDE_CANCELLED"
	NotificationRideDeclined     NotificationType = "RIDE_DECLINED"
	NotificationPaymentConfirmed NotificationType = "PAYMENT_CONFIRMED"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipient_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Sender delivers a notification to its recipient.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Publisher publishes a JSON payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// BrokerSender delivers notifications through a message broker. The routing
// key is "notification.<type>" in lower case.
type BrokerSender struct {
	publisher Publisher
}

// NewBrokerSender creates a sender backed by publisher.
func NewBrokerSender(publisher Publisher) *BrokerSender {
	return &BrokerSender{publisher: publisher}
}

func (s *BrokerSender) Send(ctx context.Context, n Notification) error {
	return s.publisher.Publish(ctx, "notification."+strings.ToLower(string(n.Type)), n)
}

// LogSender writes notifications to the log. Used when no broker is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	)
	return nil
}

// NotificationService builds ride lifecycle notifications and hands them to a Sender.
type NotificationService struct {
	sender Sender
	clock  Clock
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(sender Sender, clock Clock, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &NotificationService{sender: sender, clock: clock, logger: logger}
}

// NotifyRideRequested notifies the targeted driver, if any, about a new request.
func (s *NotificationService) NotifyRideRequested(ctx context.Context, ride *domain.Ride) error {
	if ride.DriverID == "" {
		return nil
	}
	return s.send(ctx, Notification{
		Type:        NotificationRideRequested,
		RecipientID: ride.DriverID,
		Title:       "New Ride Request",
		Message:     fmt.Sprintf("Pickup at %s", ride.Pickup),
		Data: map[string]any{
			"ride_id":     ride.ID,
			"pickup":      ride.Pickup,
			"destination": ride.Destination,
		},
	})
}

// NotifyRideAccepted sends the passenger the PIN to show the driver.
func (s *NotificationService) NotifyRideAccepted(ctx context.Context, ride *domain.Ride) error {
	return s.send(ctx, Notification{
		Type:        NotificationRideAccepted,
		RecipientID: ride.PassengerID,
		Title:       "Ride Accepted",
		Message:     fmt.Sprintf("Your driver is on the way. Your ride PIN is %s", ride.RidePin),
		Data: map[string]any{
			"ride_id":   ride.ID,
			"driver_id": ride.DriverID,
			"ride_pin":  ride.RidePin,
		},
	})
}

// NotifyPinRegenerated sends the passenger the new PIN.
func (s *NotificationService) NotifyPinRegenerated(ctx context.Context, ride *domain.Ride) error {
	return s.send(ctx, Notification{
		Type:        NotificationPinRegenerated,
		RecipientID: ride.PassengerID,
		Title:       "New Ride PIN",
		Message:     fmt.Sprintf("Your new ride PIN is %s", ride.RidePin),
		Data: map[string]any{
			"ride_id":  ride.ID,
			"ride_pin": ride.RidePin,
		},
	})
}

// NotifyRideStarted notifies the passenger that the PIN was accepted.
func (s *NotificationService) NotifyRideStarted(ctx context.Context, ride *domain.Ride) error {
	return s.send(ctx, Notification{
		Type:        NotificationRideStarted,
		RecipientID: ride.PassengerID,
		Title:       "Ride Started",
		Message:     "Your ride has started. Enjoy your ride!",
		Data: map[string]any{
			"ride_id":    ride.ID,
			"trip_id":    ride.TripID,
			"started_at": ride.StartedAt,
		},
	})
}

// NotifyRideCompleted notifies both parties of the settled fare.
func (s *NotificationService) NotifyRideCompleted(ctx context.Context, ride *domain.Ride) error {
	fare := 0.0
	if ride.FinalFare != nil {
		fare = *ride.FinalFare
	}
	for _, recipient := range []string{ride.PassengerID, ride.DriverID} {
		err := s.send(ctx, Notification{
			Type:        NotificationRideCompleted,
			RecipientID: recipient,
			Title:       "Ride Completed",
			Message:     fmt.Sprintf("Ride completed. Total fare: %.2f", fare),
			Data: map[string]any{
				"ride_id": ride.ID,
				"fare":    fare,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// NotifyRideCancelled notifies the other party about a cancellation.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride, cancelledBy string) error {
	return s.notifyCounterpart(ctx, ride, cancelledBy, NotificationRideCancelled, "Ride Cancelled", "cancelled")
}

// NotifyRideDeclined notifies the other party about a decline.
func (s *NotificationService) NotifyRideDeclined(ctx context.Context, ride *domain.Ride, declinedBy string) error {
	return s.notifyCounterpart(ctx, ride, declinedBy, NotificationRideDeclined, "Ride Declined", "declined")
}

// NotifyPaymentConfirmed notifies the driver that the passenger marked the trip paid or unpaid.
func (s *NotificationService) NotifyPaymentConfirmed(ctx context.Context, ride *domain.Ride) error {
	if ride.DriverID == "" {
		return nil
	}
	msg := "The passenger confirmed payment"
	if !ride.TripPaid {
		msg = "The passenger marked the trip as unpaid"
	}
	return s.send(ctx, Notification{
		Type:        NotificationPaymentConfirmed,
		RecipientID: ride.DriverID,
		Title:       "Payment Update",
		Message:     msg,
		Data: map[string]any{
			"ride_id": ride.ID,
			"paid":    ride.TripPaid,
		},
	})
}

func (s *NotificationService) notifyCounterpart(ctx context.Context, ride *domain.Ride, actorID string, typ NotificationType, title, verb string) error {
	var recipientID, message string
	if actorID == ride.PassengerID {
		recipientID = ride.DriverID
		message = fmt.Sprintf("The passenger has %s the ride", verb)
	} else {
		recipientID = ride.PassengerID
		message = fmt.Sprintf("The driver has %s the ride", verb)
	}

	if recipientID == "" {
		return nil // No one to notify
	}

	return s.send(ctx, Notification{
		Type:        typ,
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Data: map[string]any{
			"ride_id": ride.ID,
			"by":      actorID,
			"reason":  ride.CancelReason,
		},
	})
}

func (s *NotificationService) send(ctx context.Context, n Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = s.clock.Now()

	if s.sender == nil {
		return nil
	}
	if err := s.sender.Send(ctx, n); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("type", string(n.Type)),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
