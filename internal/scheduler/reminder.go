// Package scheduler runs the clinic's periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"healthtracker-server/internal/mailer"
	"healthtracker-server/internal/models"
	"healthtracker-server/internal/repository"
)

// ReminderObserver receives one label per reminder outcome.
type ReminderObserver interface {
	ObserveReminder(result string)
}

// Summary reports what one reminder run did.
type Summary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ReminderJob e-mails patients the day before a Scheduled appointment.
type ReminderJob struct {
	appointments repository.AppointmentRepository
	sender       mailer.Sender
	observer     ReminderObserver
	logger       *zap.Logger
	loc          *time.Location
	at           string
	now          func() time.Time

	scheduler *gocron.Scheduler
}

// NewReminderJob builds a job that fires daily at the "HH:MM" clock time at,
// read in loc.
func NewReminderJob(appointments repository.AppointmentRepository, sender mailer.Sender, observer ReminderObserver, logger *zap.Logger, loc *time.Location, at string) *ReminderJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderJob{
		appointments: appointments,
		sender:       sender,
		observer:     observer,
		logger:       logger,
		loc:          loc,
		at:           at,
		now:          time.Now,
	}
}

// Start schedules the job and returns immediately.
func (j *ReminderJob) Start() error {
	if j.scheduler != nil {
		return fmt.Errorf("reminder job already started")
	}
	s := gocron.NewScheduler(j.loc)
	if _, err := s.Every(1).Day().At(j.at).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		summary, err := j.Run(ctx)
		if err != nil {
			j.logger.Error("appointment reminder run failed", zap.Error(err))
			return
		}
		j.logger.Info("appointment reminder run finished",
			zap.Int("sent", summary.Sent), zap.Int("skipped", summary.Skipped), zap.Int("failed", summary.Failed))
	}); err != nil {
		return fmt.Errorf("schedule reminder job at %q: %w", j.at, err)
	}
	s.StartAsync()
	j.scheduler = s
	j.logger.Info("appointment reminder job started", zap.String("at", j.at), zap.String("timezone", j.loc.String()))
	return nil
}

// Stop halts the scheduler. It is safe to call when Start was never called.
func (j *ReminderJob) Stop() {
	if j.scheduler == nil {
		return
	}
	j.scheduler.Stop()
	j.scheduler = nil
}

// Run sends reminders for every Scheduled appointment dated tomorrow in the
// clinic zone. A failed send is logged and counted; the batch carries on.
func (j *ReminderJob) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	today := j.now().In(j.loc)
	from := time.Date(today.Year(), today.Month(), today.Day()+1, 0, 0, 0, 0, j.loc)
	to := from.AddDate(0, 0, 1).Add(-time.Millisecond)

	due, err := j.appointments.List(ctx, repository.AppointmentFilter{
		From:     &from,
		To:       &to,
		Statuses: []models.AppointmentStatus{models.StatusScheduled},
	})
	if err != nil {
		return summary, fmt.Errorf("list tomorrow's appointments: %w", err)
	}

	for _, appt := range due {
		if appt.Patient == nil || appt.Patient.Email == "" {
			summary.Skipped++
			j.observe("skipped")
			continue
		}
		if err := j.send(ctx, appt); err != nil {
			summary.Failed++
			j.observe("failed")
			j.logger.Warn("reminder email failed",
				zap.String("appointment_id", appt.ID), zap.String("to", appt.Patient.Email), zap.Error(err))
			continue
		}
		summary.Sent++
		j.observe("sent")
	}
	return summary, nil
}

func (j *ReminderJob) send(ctx context.Context, appt models.Appointment) error {
	msg, err := mailer.ReminderMessage(appt.Patient.Email, appt.Patient.Name, appt.DoctorName, appt.Date.In(j.loc))
	if err != nil {
		return err
	}
	return j.sender.Send(ctx, msg)
}

func (j *ReminderJob) observe(result string) {
	if j.observer != nil {
		j.observer.ObserveReminder(result)
	}
}
