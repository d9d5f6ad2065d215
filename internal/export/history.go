// Package export renders a patient's medical history as downloadable
// documents: PDF, Excel workbook and PNG image.
package export

import (
	"fmt"
	"strings"
	"time"

	"healthtracker-server/internal/models"
)

const (
	dateLayout     = "02 Jan 2006"
	dateTimeLayout = "02 Jan 2006 03:04 PM"
)

// History is everything a history document shows for one patient.
type History struct {
	Patient     *models.Patient       `json:"patient"`
	Records     []models.HealthRecord `json:"records"`
	GeneratedAt time.Time             `json:"generatedAt"`

	loc *time.Location
}

// NewHistory builds the view. Dates are rendered in loc.
func NewHistory(patient *models.Patient, records []models.HealthRecord, now time.Time, loc *time.Location) History {
	if loc == nil {
		loc = time.UTC
	}
	if records == nil {
		records = []models.HealthRecord{}
	}
	return History{Patient: patient, Records: records, GeneratedAt: now, loc: loc}
}

// Filename returns a download name like "medical-history-jane-doe.pdf".
func (h History) Filename(ext string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(h.Patient.Name), "-"))
	if slug == "" {
		slug = h.Patient.ID
	}
	return fmt.Sprintf("medical-history-%s.%s", slug, ext)
}

func (h History) date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(h.loc).Format(dateLayout)
}

func (h History) dateTime(t time.Time) string {
	return t.In(h.loc).Format(dateTimeLayout)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// profile lists the label/value pairs of the patient header.
func (h History) profile() [][2]string {
	p := h.Patient
	nextVisit := "-"
	if p.NextVisit != nil {
		nextVisit = h.date(*p.NextVisit)
	}
	dob := "-"
	if p.DOB != nil {
		dob = h.date(*p.DOB)
	}
	return [][2]string{
		{"Name", p.Name},
		{"Age", fmt.Sprintf("%d", p.Age)},
		{"Gender", orDash(string(p.Gender))},
		{"Date of Birth", dob},
		{"Blood Group", orDash(p.BloodGroup)},
		{"Phone", orDash(p.Phone)},
		{"Email", orDash(p.Email)},
		{"Address", orDash(p.Address)},
		{"Status", string(p.Status)},
		{"Allergies", orDash(p.Allergies)},
		{"Medical History", orDash(p.MedicalHistory)},
		{"Emergency Contact", orDash(p.EmergencyContact)},
		{"Insurance", orDash(p.Insurance)},
		{"Next Visit", nextVisit},
	}
}

// section is a titled table shared by every output format.
type section struct {
	title   string
	headers []string
	rows    [][]string
}

func (h History) sections() []section {
	records := section{title: "Health Records", headers: []string{"Date", "Type", "Provider", "Diagnosis", "Treatment", "Vitals"}}
	for _, r := range h.Records {
		records.rows = append(records.rows, []string{
			h.date(r.Date), string(r.Type), r.Provider, orDash(r.Diagnosis), orDash(r.Treatment), orDash(r.Vitals),
		})
	}

	visits := section{title: "Visits", headers: []string{"Date", "Doctor", "Status"}}
	for _, v := range h.Patient.Appointments {
		visits.rows = append(visits.rows, []string{h.dateTime(v.Date), v.Doctor, string(v.Status)})
	}

	prescriptions := section{title: "Prescriptions", headers: []string{"Date", "Medicine", "Duration"}}
	for _, rx := range h.Patient.Prescriptions {
		prescriptions.rows = append(prescriptions.rows, []string{h.date(rx.Date), rx.Medicine, rx.Duration})
	}

	notes := section{title: "History", headers: []string{"Date", "Details"}}
	for _, e := range h.Patient.History {
		notes.rows = append(notes.rows, []string{h.date(e.Date), e.Details})
	}

	return []section{records, visits, prescriptions, notes}
}
