package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestAvailabilityValidate(t *testing.T) {
	tests := []struct {
		name    string
		av      Availability
		invalid []string
	}{
		{
			name: "scheduled",
			av:   Availability{DoctorID: "d", Days: []string{"Monday", "Friday"}, StartTime: "09:00", EndTime: "17:00"},
		},
		{
			name: "emergency",
			av:   Availability{DoctorID: "d", Emergency: true, Days: []string{}},
		},
		{
			name:    "zero width window",
			av:      Availability{Days: []string{"Monday"}, StartTime: "09:00", EndTime: "09:00"},
			invalid: []string{"endTime"},
		},
		{
			name:    "reversed window",
			av:      Availability{Days: []string{"Monday"}, StartTime: "18:00", EndTime: "09:00"},
			invalid: []string{"endTime"},
		},
		{
			name:    "no days",
			av:      Availability{StartTime: "09:00", EndTime: "17:00"},
			invalid: []string{"days"},
		},
		{
			name:    "unknown day and bad clock",
			av:      Availability{Days: []string{"Funday"}, StartTime: "9:00", EndTime: "24:00"},
			invalid: []string{"days", "startTime", "endTime"},
		},
		{
			name:    "emergency with schedule",
			av:      Availability{Emergency: true, Days: []string{"Monday"}},
			invalid: []string{"emergency"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.av.Validate()
			if tt.invalid == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.invalid, fieldNames(t, err))
		})
	}
}

func TestAvailabilityNormalize(t *testing.T) {
	av := Availability{Days: []string{"monday", "MONDAY", "tuesday"}, StartTime: "09:00", EndTime: "10:00"}
	av.Normalize()
	assert.Equal(t, []string{"Monday", "Tuesday"}, av.Days)
	assert.True(t, av.HasDay(time.Tuesday))
	assert.False(t, av.HasDay(time.Sunday))

	av.Emergency = true
	av.Normalize()
	assert.Empty(t, av.Days)
	assert.NotNil(t, av.Days)
	assert.Empty(t, av.StartTime)
	assert.NoError(t, av.Validate())
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("17:45")
	require.NoError(t, err)
	assert.Equal(t, 17*60+45, m)

	_, err = ParseClock("7:45")
	assert.Error(t, err)
}

func TestPatientChildCollections(t *testing.T) {
	p := &Patient{DoctorID: "doc", AuthRef: "auth", Name: "Jane Doe", Status: PatientActive}
	p.EnsureID()
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	first := p.AddVisit(day, "Dr. Raj Miyani", "")
	assert.Equal(t, StatusPending, first.Status)
	firstID := first.ID
	second := p.AddVisit(day.AddDate(0, 0, 7), "Dr. Raj Miyani", StatusScheduled)
	secondID := second.ID
	third := p.AddVisit(day.AddDate(0, 0, 14), "Dr. Raj Miyani", StatusScheduled)
	thirdID := third.ID

	require.NoError(t, p.RemoveVisit(secondID))
	require.Len(t, p.Appointments, 2)
	assert.Equal(t, firstID, p.Appointments[0].ID)
	assert.Equal(t, thirdID, p.Appointments[1].ID)
	assert.Equal(t, 1, p.Appointments[1].Position)
	assert.Equal(t, p.ID, p.Appointments[1].PatientID)

	completed := StatusCompleted
	updated, err := p.UpdateVisit(thirdID, VisitPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Equal(t, "Dr. Raj Miyani", updated.Doctor)

	_, err = p.UpdateVisit("missing", VisitPatch{})
	assert.ErrorIs(t, err, ErrChildNotFound)
	assert.ErrorIs(t, p.RemoveVisit(secondID), ErrChildNotFound)

	rx := p.AddPrescription(day, " Amoxicillin ", "7 days")
	assert.Equal(t, "Amoxicillin", rx.Medicine)
	dose := "10 days"
	rxUpdated, err := p.UpdatePrescription(rx.ID, PrescriptionPatch{Duration: &dose})
	require.NoError(t, err)
	assert.Equal(t, "10 days", rxUpdated.Duration)
	require.NoError(t, p.RemovePrescription(rx.ID))
	assert.Empty(t, p.Prescriptions)

	p.AddHistory(day, "Initial consultation")
	history, visits, prescriptions := p.ChildIDs()
	assert.Len(t, history, 1)
	assert.Equal(t, []string{firstID, thirdID}, visits)
	assert.Empty(t, prescriptions)

	assert.NoError(t, p.Validate())
}

func TestPatientValidate(t *testing.T) {
	p := &Patient{
		DoctorID:   "doc",
		AuthRef:    "auth",
		Name:       "J",
		Age:        121,
		Gender:     "Robot",
		Phone:      "12345",
		Email:      "not-an-email",
		Status:     "Sleeping",
		BloodGroup: "C+",
	}
	assert.Equal(t,
		[]string{"name", "age", "gender", "phone", "email", "status", "bloodGroup"},
		fieldNames(t, p.Validate()))
}

func TestParseHelpers(t *testing.T) {
	g, ok := ParseGender("female")
	assert.True(t, ok)
	assert.Equal(t, GenderFemale, g)

	s, ok := ParsePatientStatus("CRITICAL")
	assert.True(t, ok)
	assert.Equal(t, PatientCritical, s)

	st, ok := ParseAppointmentStatus("cancelled")
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, st)

	_, ok = ParseAppointmentStatus("Rescheduled")
	assert.False(t, ok)
}

func TestAppointmentValidateNew(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	a := &Appointment{PatientID: "p", DoctorName: "Dr. Raj Miyani", Date: now.Add(time.Hour), Status: StatusScheduled}
	assert.NoError(t, a.ValidateNew(now))

	a.Date = now.Add(-time.Minute)
	assert.Equal(t, []string{"date"}, fieldNames(t, a.ValidateNew(now)))
	assert.NoError(t, a.Validate())

	a.DoctorName = "Dr. R2D2"
	assert.Equal(t, []string{"doctorName"}, fieldNames(t, a.Validate()))
}

func TestHealthRecordValidate(t *testing.T) {
	r := &HealthRecord{PatientID: "p", Date: time.Now(), Type: "X-Ray", Provider: "City Lab"}
	assert.Equal(t, []string{"type", "diagnosis", "treatment"}, fieldNames(t, r.Validate()))
}

func TestIdentityOTPFlow(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	id := &Identity{Name: "Jane Doe", Email: "jane@example.com", Phone: "9876543210"}
	require.NoError(t, id.SetPassword("secret123"))
	assert.True(t, id.CheckPassword("secret123"))
	assert.False(t, id.CheckPassword("secret124"))

	assert.ErrorIs(t, id.ResetPassword("newsecret1"), ErrResetNotAllowed)

	id.IssueOTP("123456", now, 5*time.Minute)
	assert.ErrorIs(t, id.VerifyOTP("654321", now), ErrOTPInvalid)
	assert.ErrorIs(t, id.VerifyOTP("123456", now.Add(6*time.Minute)), ErrOTPExpired)

	require.NoError(t, id.VerifyOTP("123456", now.Add(time.Minute)))
	assert.Empty(t, id.OTP)
	assert.Nil(t, id.OTPExpiry)
	assert.True(t, id.Verified)

	require.NoError(t, id.ResetPassword("newsecret1"))
	assert.True(t, id.CheckPassword("newsecret1"))
	assert.ErrorIs(t, id.ResetPassword("again12345"), ErrResetNotAllowed)
}

func TestIdentityOTPBurnsAfterRepeatedMisses(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	id := &Identity{Name: "Jane Doe", Email: "jane@example.com", Phone: "9876543210"}
	id.IssueOTP("123456", now, 5*time.Minute)

	for i := 1; i < MaxOTPAttempts; i++ {
		assert.ErrorIs(t, id.VerifyOTP("654321", now), ErrOTPInvalid)
		assert.Equal(t, i, id.OTPAttempts)
	}
	assert.ErrorIs(t, id.VerifyOTP("654321", now), ErrOTPExhausted)
	assert.Empty(t, id.OTP)
	assert.Nil(t, id.OTPExpiry)
	assert.Zero(t, id.OTPAttempts)

	assert.ErrorIs(t, id.VerifyOTP("123456", now), ErrOTPInvalid)
	assert.False(t, id.CanResetPassword)

	// A fresh code starts a fresh count.
	id.IssueOTP("222222", now, 5*time.Minute)
	require.NoError(t, id.VerifyOTP("222222", now))
}

func TestIdentityValidate(t *testing.T) {
	id := &Identity{Name: "Jo", Email: "jo-at-example.com", Phone: "98765"}
	assert.Equal(t, []string{"name", "email", "phone"}, fieldNames(t, id.Validate()))

	google := &Identity{Name: "Jane Doe", Email: "jane@example.com", GoogleID: "g-1"}
	assert.NoError(t, google.Validate())
}

func TestValidationMessages(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	p := &Patient{DoctorID: "doc", AuthRef: "auth", Name: "Jane Doe", Age: 0, Status: PatientActive}
	p.History = []HistoryEntry{{Date: day, Details: "ok"}, {Date: day, Details: "   "}}
	p.Prescriptions = []Prescription{{Date: day, Medicine: "Amoxicillin"}}

	var verr *ValidationError
	require.ErrorAs(t, p.Validate(), &verr)
	assert.Equal(t, []FieldError{
		{Field: "history", Message: "details is required"},
		{Field: "prescriptions", Message: "duration is required"},
	}, verr.Fields)

	av := &Availability{Days: []string{"Monday", "Funday"}, StartTime: "10:00", EndTime: "09:30"}
	require.ErrorAs(t, av.Validate(), &verr)
	assert.Equal(t, []FieldError{
		{Field: "days", Message: `"Funday" is not a weekday`},
		{Field: "endTime", Message: "must be later than startTime"},
	}, verr.Fields)

	r := &HealthRecord{PatientID: "p", Date: day, Type: RecordTypeLabResults, Provider: "City Lab", Diagnosis: "d", Treatment: "t"}
	assert.NoError(t, r.Validate())

	noPhone := &Identity{Name: "Jane Doe", Email: "jane@example.com"}
	require.ErrorAs(t, noPhone.Validate(), &verr)
	assert.Equal(t, []FieldError{{Field: "phone", Message: "is required"}}, verr.Fields)

	n := &Notification{DoctorID: "doc", Message: " "}
	assert.Equal(t, []string{"message"}, fieldNames(t, n.Validate()))
}

func TestNotificationMarkRead(t *testing.T) {
	n := NewNotification("doc", "  New patient registered ")
	assert.Equal(t, "New patient registered", n.Message)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n.MarkRead(first)
	n.MarkRead(first.Add(time.Hour))
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, first, *n.ReadAt)
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-03-02T10:00", time.Date(2026, 3, 2, 10, 0, 0, 0, loc)},
		{"2026-03-02T10:00:30", time.Date(2026, 3, 2, 10, 0, 30, 0, loc)},
		{"2026-03-02T10:00:30.000", time.Date(2026, 3, 2, 10, 0, 30, 0, loc)},
		{"2026-03-02 10:00:30", time.Date(2026, 3, 2, 10, 0, 30, 0, loc)},
		{"2026-03-02 10:00", time.Date(2026, 3, 2, 10, 0, 0, 0, loc)},
		{"2026-03-02", time.Date(2026, 3, 2, 0, 0, 0, 0, loc)},
		{"2026-03-02T04:30:00Z", time.Date(2026, 3, 2, 10, 0, 0, 0, loc)},
		{" 2026-03-02T10:00 ", time.Date(2026, 3, 2, 10, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDate(tt.raw, loc)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s", got)
		})
	}

	for _, bad := range []string{"", "   ", "next monday", "02/03/2026"} {
		_, err := ParseDate(bad, loc)
		assert.Error(t, err, bad)
	}
}
