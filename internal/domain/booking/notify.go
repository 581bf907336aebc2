package booking

import (
	"context"

	"github.com/mindcare/mindcare/internal/domain/directory"
	"github.com/mindcare/mindcare/internal/domain/timerange"
	"github.com/mindcare/mindcare/internal/platform/notification"
)

// Side effects run after the transition has committed. Nothing here returns
// an error to the caller; failures are logged and dropped.

func (s *Service) templateData(b *Booking, reason string) map[string]string {
	return map[string]string{
		"date":             timerange.FormatDate(b.Date),
		"start":            b.Start,
		"end":              b.End,
		"modality":         string(b.Modality),
		"meeting_link":     b.MeetingLink,
		"meeting_password": b.MeetingPassword,
		"reason":           reason,
	}
}

// parties resolves both sides of b, skipping any that cannot be resolved.
func (s *Service) parties(ctx context.Context, b *Booking) []*directory.Participant {
	var out []*directory.Participant
	for _, ref := range []string{b.UserRef, b.ProfessionalRef} {
		p, err := s.dir.ByRef(ctx, ref)
		if err != nil {
			s.warn(b, ref, "resolve party", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) announce(ctx context.Context, b *Booking, event notification.Event, reason string, recipients ...*directory.Participant) {
	ctx = context.WithoutCancel(ctx)
	subject, text, err := s.templates.Render(string(event), s.templateData(b, reason))
	if err != nil {
		s.warn(b, "", "render "+string(event), err)
		return
	}
	for _, p := range recipients {
		s.notify.Notify(ctx, notification.Message{
			RecipientID: p.Ref,
			BookingID:   b.ID.String(),
			Type:        event,
			Text:        text,
		})
		if p.Email != "" {
			s.notify.SendEmail(ctx, notification.Email{
				To:       p.Email,
				Subject:  subject,
				HTMLBody: notification.HTMLParagraph(text),
			})
		}
	}
}

// scheduleReminders queues a session reminder for each party, ReminderLead
// before the session starts.
func (s *Service) scheduleReminders(ctx context.Context, b *Booking, recipients []*directory.Participant) {
	ctx = context.WithoutCancel(ctx)
	at := b.StartsAt().Add(-s.cfg.ReminderLead)
	if !at.After(s.now()) {
		return
	}
	_, text, err := s.templates.Render(string(notification.EventSessionReminder), s.templateData(b, ""))
	if err != nil {
		s.warn(b, "", "render reminder", err)
		return
	}
	for _, p := range recipients {
		s.notify.ScheduleReminder(ctx, notification.Message{
			RecipientID:  p.Ref,
			BookingID:    b.ID.String(),
			Type:         notification.EventSessionReminder,
			Text:         text,
			SessionStart: b.StartsAt(),
		}, at)
	}
}

func (s *Service) warn(b *Booking, recipient, step string, err error) {
	s.logger.Warn().Err(err).
		Str("booking_id", b.ID.String()).
		Str("recipient", recipient).
		Str("type", step).
		Msg("booking side effect failed")
}
