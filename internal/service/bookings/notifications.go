package bookings

import (
	"fmt"
	"log/slog"
	"time"

	"consultations/backend/internal/domain"
	"consultations/backend/internal/notify"
)

const (
	TemplateRequesterConfirmed = "requester-booking-confirmed"
	TemplateProviderNew        = "provider-booking-new"
	TemplateCancelled          = "booking-cancelled"

	appointmentTimeLayout = "Monday, Jan 02, 2006 at 03:04 PM"
)

func (s *Service) formatTime(t time.Time) string {
	return t.In(s.cfg.Location).Format(appointmentTimeLayout)
}

func (s *Service) notifyCreated(b domain.Booking, provider domain.Provider, requester domain.Requester) {
	if s.notifier == nil {
		return
	}
	when := s.formatTime(b.StartTime)

	s.notifier.Dispatch(notify.Intent{
		Recipient: requester.Email,
		Subject:   "Your consultation with " + provider.Name + " is confirmed",
		Template:  TemplateRequesterConfirmed,
		Variables: map[string]any{
			"providerName":     provider.Name,
			"requesterName":    requester.Name,
			"appointmentTime":  when,
			"meetingReference": b.MeetingReference,
			"purpose":          b.Purpose,
		},
	})
	s.notifier.Dispatch(notify.Intent{
		Recipient: provider.Email,
		Subject:   "New consultation booked by " + requester.Name,
		Template:  TemplateProviderNew,
		Variables: map[string]any{
			"providerName":     provider.Name,
			"requesterName":    requester.Name,
			"appointmentTime":  when,
			"meetingReference": b.MeetingReference,
			"purpose":          b.Purpose,
			"initialNotes":     b.InitialNotes,
		},
	})
}

func (s *Service) notifyCancelled(b domain.Booking, provider domain.Provider, requester domain.Requester, callerID string) {
	if s.notifier == nil {
		return
	}

	var cancelledBy string
	switch callerID {
	case provider.UserID:
		cancelledBy = provider.Name
	case requester.UserID:
		cancelledBy = requester.Name
	default:
		s.log.Error("cancel notification skipped: caller is not a party", slog.String("booking_id", b.ID.String()))
		return
	}

	when := s.formatTime(b.StartTime)
	vars := func(recipient string) map[string]any {
		return map[string]any{
			"cancellingPartyName": cancelledBy,
			"appointmentTime":     when,
			"providerName":        provider.Name,
			"requesterName":       requester.Name,
			"recipientName":       recipient,
		}
	}

	s.notifier.Dispatch(notify.Intent{
		Recipient: requester.Email,
		Subject:   fmt.Sprintf("Booking %s has been cancelled", b.ID),
		Template:  TemplateCancelled,
		Variables: vars(requester.Name),
	})
	s.notifier.Dispatch(notify.Intent{
		Recipient: provider.Email,
		Subject:   "A consultation has been cancelled",
		Template:  TemplateCancelled,
		Variables: vars(provider.Name),
	})
}
