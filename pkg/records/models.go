package records

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type Patient struct {
	ID         string   `json:"id" gorm:"primaryKey;column:id;size:255"`
	Gender     *string  `json:"gender" gorm:"column:gender;size:10"`
	Birthdate  *Date    `json:"birthdate" gorm:"column:birthdate"`
	Age        *int     `json:"age" gorm:"column:age"`
	BMI        *float64 `json:"bmi" gorm:"column:bmi"`
	SysBP      *float64 `json:"sys_bp" gorm:"column:sys_bp"`
	DiaBP      *float64 `json:"dia_bp" gorm:"column:dia_bp"`
	HeartRate  *float64 `json:"heart_rate" gorm:"column:heart_rate"`
	BPCategory *string  `json:"bp_category" gorm:"column:bp_category;size:20"`

	Conditions   []Condition   `json:"-" gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
	Observations []Observation `json:"-" gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
}

func (Patient) TableName() string {
	return "patients"
}

type Condition struct {
	ID          uint    `json:"id" gorm:"primaryKey;column:id"`
	PatientID   string  `json:"patient" gorm:"column:patient_id;size:255;not null;index"`
	Description *string `json:"description" gorm:"column:description;type:text"`
	StartDate   *Date   `json:"start_date" gorm:"column:start_date"`
}

func (Condition) TableName() string {
	return "conditions"
}

type Observation struct {
	ID          uint     `json:"id" gorm:"primaryKey;column:id"`
	PatientID   string   `json:"patient" gorm:"column:patient_id;size:255;not null;index"`
	Description *string  `json:"description" gorm:"column:description;type:text"`
	Value       *float64 `json:"value" gorm:"column:value"`
	Units       *string  `json:"units" gorm:"column:units;size:50"`
	Date        *Date    `json:"date" gorm:"column:date"`
}

func (Observation) TableName() string {
	return "observations"
}

// Column limits mirror the table definitions above.
const (
	maxIDLength         = 255
	maxGenderLength     = 10
	maxCategoryLength   = 20
	maxUnitsLength      = 50
	patientRequiredText = "This field is required."
)

// ValidationError carries field-level problems keyed by JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range sortedKeys(e.Fields) {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (p *Patient) Validate() error {
	var verr ValidationError
	if strings.TrimSpace(p.ID) == "" {
		verr.add("id", patientRequiredText)
	}
	checkLength(&verr, "id", &p.ID, maxIDLength)
	checkLength(&verr, "gender", p.Gender, maxGenderLength)
	checkLength(&verr, "bp_category", p.BPCategory, maxCategoryLength)
	if p.Age != nil && *p.Age < 0 {
		verr.add("age", "Ensure this value is greater than or equal to 0.")
	}
	return verr.orNil()
}

func (c *Condition) Validate() error {
	var verr ValidationError
	if strings.TrimSpace(c.PatientID) == "" {
		verr.add("patient", patientRequiredText)
	}
	return verr.orNil()
}

func (o *Observation) Validate() error {
	var verr ValidationError
	if strings.TrimSpace(o.PatientID) == "" {
		verr.add("patient", patientRequiredText)
	}
	checkLength(&verr, "units", o.Units, maxUnitsLength)
	return verr.orNil()
}

func checkLength(verr *ValidationError, field string, value *string, limit int) {
	if value == nil {
		return
	}
	if utf8.RuneCountInString(*value) > limit {
		verr.add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", limit))
	}
}

// AgeAt is the calendar-year difference used for the derived age column.
func AgeAt(birth Date, now time.Time) int {
	return now.Year() - birth.Year()
}
