package records

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repository is the postgres-backed Store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Patient{}, &Condition{}, &Observation{})
}

func (r *Repository) CreatePatient(ctx context.Context, p *Patient) error {
	err := r.db.WithContext(ctx).Omit("Conditions", "Observations").Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePatient
	}
	return err
}

func (r *Repository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	result := r.db.WithContext(ctx).First(&p, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &p, result.Error
}

func (r *Repository) PatientExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Patient{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListPatients(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	err := r.db.WithContext(ctx).Order("id").Find(&patients).Error
	return patients, err
}

func (r *Repository) UpdatePatient(ctx context.Context, p *Patient) error {
	result := r.db.WithContext(ctx).Model(&Patient{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"gender":      p.Gender,
			"birthdate":   p.Birthdate,
			"age":         p.Age,
			"bmi":         p.BMI,
			"sys_bp":      p.SysBP,
			"dia_bp":      p.DiaBP,
			"heart_rate":  p.HeartRate,
			"bp_category": p.BPCategory,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeletePatient(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("patient_id = ?", id).Delete(&Condition{}).Error; err != nil {
			return fmt.Errorf("deleting conditions: %w", err)
		}
		if err := tx.Where("patient_id = ?", id).Delete(&Observation{}).Error; err != nil {
			return fmt.Errorf("deleting observations: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&Patient{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *Repository) CreateCondition(ctx context.Context, c *Condition) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repository) GetCondition(ctx context.Context, id uint) (*Condition, error) {
	var c Condition
	result := r.db.WithContext(ctx).First(&c, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &c, result.Error
}

func (r *Repository) ListConditions(ctx context.Context, patientID string) ([]Condition, error) {
	var conditions []Condition
	q := r.db.WithContext(ctx).Order("id")
	if patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	err := q.Find(&conditions).Error
	return conditions, err
}

func (r *Repository) DeleteCondition(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Condition{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateObservation(ctx context.Context, o *Observation) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *Repository) GetObservation(ctx context.Context, id uint) (*Observation, error) {
	var o Observation
	result := r.db.WithContext(ctx).First(&o, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &o, result.Error
}

func (r *Repository) ListObservations(ctx context.Context, patientID string) ([]Observation, error) {
	var observations []Observation
	q := r.db.WithContext(ctx).Order("id")
	if patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	err := q.Find(&observations).Error
	return observations, err
}

func (r *Repository) DeleteObservation(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Observation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type groupCountRow struct {
	Grp *string
	Cnt int
}

type groupAverageRow struct {
	Grp *string
	Avg *float64
}

func (r *Repository) ConditionCounts(ctx context.Context, description, dimension string) ([]GroupCount, error) {
	if err := checkDimension(dimension); err != nil {
		return nil, err
	}
	var rows []groupCountRow
	err := r.db.WithContext(ctx).Table("conditions").
		Select(fmt.Sprintf("patients.%s AS grp, COUNT(conditions.patient_id) AS cnt", dimension)).
		Joins("JOIN patients ON patients.id = conditions.patient_id").
		Where("conditions.description = ?", description).
		Group("patients." + dimension).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]GroupCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, GroupCount{Group: row.Grp, Count: row.Cnt})
	}
	return out, nil
}

func (r *Repository) PatientAverages(ctx context.Context, attribute, dimension string) ([]GroupAverage, error) {
	if err := checkDimension(dimension); err != nil {
		return nil, err
	}
	if err := checkAttribute(attribute); err != nil {
		return nil, err
	}
	var rows []groupAverageRow
	err := r.db.WithContext(ctx).Table("patients").
		Select(fmt.Sprintf("%s AS grp, AVG(%s) AS avg", dimension, attribute)).
		Group(dimension).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]GroupAverage, 0, len(rows))
	for _, row := range rows {
		out = append(out, GroupAverage{Group: row.Grp, Average: row.Avg})
	}
	return out, nil
}

func (r *Repository) PatientCategoryCounts(ctx context.Context, dimension string) ([]GroupCount, error) {
	if err := checkDimension(dimension); err != nil {
		return nil, err
	}
	var rows []groupCountRow
	err := r.db.WithContext(ctx).Table("patients").
		Select(fmt.Sprintf("%s AS grp, COUNT(id) AS cnt", dimension)).
		Group(dimension).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]GroupCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, GroupCount{Group: row.Grp, Count: row.Cnt})
	}
	return out, nil
}

func (r *Repository) CountPatients(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Patient{}).Count(&count).Error
	return count, err
}
