package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
)

// Observer receives one outcome label per booking attempt.
type Observer interface {
	ObserveBooking(result string)
}

// Options configures the clinic the service books for.
type Options struct {
	DoctorID   string
	DoctorName string
	// SlotLength, when positive, refuses bookings closer than this to any
	// other patient's live appointment.
	SlotLength time.Duration
}

// Service books patient-initiated appointments.
type Service struct {
	store     *repository.Store
	validator *Validator
	sender    mailer.Sender
	observer  Observer
	logger    *zap.Logger
	opts      Options
}

func NewService(store *repository.Store, validator *Validator, sender mailer.Sender, observer Observer, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		validator: validator,
		sender:    sender,
		observer:  observer,
		logger:    logger,
		opts:      opts,
	}
}

// Book runs the admission rules for identityID in order, stopping at the
// first failure, and creates a Scheduled appointment when all pass. The
// returned error is a *Rejection for refused requests.
//
// The same-day check and the insert are not atomic, so two concurrent
// requests for one patient can both succeed.
func (s *Service) Book(ctx context.Context, identityID, rawDate, reason string) (*models.Appointment, error) {
	appointment, err := s.book(ctx, identityID, rawDate, reason)
	if s.observer != nil {
		var rej *Rejection
		switch {
		case err == nil:
			s.observer.ObserveBooking("accepted")
		case errors.As(err, &rej):
			s.observer.ObserveBooking(string(rej.Reason))
		default:
			s.observer.ObserveBooking("error")
		}
	}
	return appointment, err
}

func (s *Service) book(ctx context.Context, identityID, rawDate, reason string) (*models.Appointment, error) {
	patient, err := s.store.Patients.FindByAuthRef(ctx, s.opts.DoctorID, identityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, reject(ReasonNotRegistered, "You are not registered as a patient")
	}
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}

	date, err := s.admit(ctx, patient.ID, rawDate, "")
	if err != nil {
		return nil, err
	}

	appointment := &models.Appointment{
		PatientID:  patient.ID,
		DoctorName: s.opts.DoctorName,
		Date:       date,
		Reason:     reason,
		Status:     models.StatusScheduled,
	}
	if err := appointment.ValidateNew(s.validator.Now()); err != nil {
		return nil, err
	}
	if err := s.store.Appointments.Create(ctx, appointment); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.notifyDoctor(ctx, patient, date)
	s.sendConfirmation(ctx, patient, appointment)

	created, err := s.store.Appointments.FindByID(ctx, appointment.ID)
	if err != nil {
		s.logger.Warn("reload booked appointment", zap.String("appointment_id", appointment.ID), zap.Error(err))
		appointment.Patient = patient
		return appointment, nil
	}
	return created, nil
}

// Reschedule moves appointment to rawDate under the rules Book applies.
// The appointment itself does not count against the same-day or slot
// checks. Nothing is saved.
func (s *Service) Reschedule(ctx context.Context, appointment *models.Appointment, rawDate string) error {
	date, err := s.admit(ctx, appointment.PatientID, rawDate, appointment.ID)
	if err != nil {
		return err
	}
	appointment.Date = date
	return nil
}

// admit runs the date, same-day, availability and slot rules in order.
// skipID names an appointment to leave out of the conflict checks.
func (s *Service) admit(ctx context.Context, patientID, rawDate, skipID string) (time.Time, error) {
	date, err := s.validator.CheckDate(rawDate)
	if err != nil {
		return time.Time{}, err
	}

	dayStart, dayEnd := s.validator.DayBounds(date)
	sameDay, err := s.store.Appointments.List(ctx, repository.AppointmentFilter{
		PatientID:       patientID,
		From:            &dayStart,
		To:              &dayEnd,
		ExcludeStatuses: []models.AppointmentStatus{models.StatusCancelled},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("check same-day appointments: %w", err)
	}
	if others(sameDay, skipID) > 0 {
		return time.Time{}, reject(ReasonAlreadyBooked, "You already have an appointment that day")
	}

	av, err := s.store.Availability.GetCurrent(ctx, s.opts.DoctorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, fmt.Errorf("load availability: %w", err)
	}
	if err := s.validator.CheckAvailability(av, date); err != nil {
		return time.Time{}, err
	}

	if err := s.checkSlot(ctx, date, skipID); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

func others(appointments []models.Appointment, skipID string) int {
	n := 0
	for _, a := range appointments {
		if a.ID != skipID {
			n++
		}
	}
	return n
}

func (s *Service) checkSlot(ctx context.Context, date time.Time, skipID string) error {
	if s.opts.SlotLength <= 0 {
		return nil
	}
	from := date.Add(-s.opts.SlotLength + time.Nanosecond)
	to := date.Add(s.opts.SlotLength - time.Nanosecond)
	clash, err := s.store.Appointments.List(ctx, repository.AppointmentFilter{
		From:            &from,
		To:              &to,
		ExcludeStatuses: []models.AppointmentStatus{models.StatusCancelled},
	})
	if err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if others(clash, skipID) > 0 {
		return reject(ReasonSlotTaken, "Another appointment is already booked at this time")
	}
	return nil
}

func (s *Service) notifyDoctor(ctx context.Context, patient *models.Patient, date time.Time) {
	msg := fmt.Sprintf("New appointment booked by %s for %s",
		patient.Name, date.In(s.validator.Location()).Format("02 Jan 2006 03:04 PM"))
	if err := s.store.Notifications.Create(ctx, models.NewNotification(s.opts.DoctorID, msg)); err != nil {
		s.logger.Warn("booking notification failed", zap.String("patient_id", patient.ID), zap.Error(err))
	}
}

func (s *Service) sendConfirmation(ctx context.Context, patient *models.Patient, appointment *models.Appointment) {
	if s.sender == nil || patient.Email == "" {
		return
	}
	msg, err := mailer.ConfirmationMessage(patient.Email, patient.Name, appointment.DoctorName,
		appointment.Reason, appointment.Date.In(s.validator.Location()))
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Warn("booking confirmation email failed", zap.String("to", patient.Email), zap.Error(err))
	}
}
