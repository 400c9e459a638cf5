// Package insights computes the read-only aggregate reports over patient records.
package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/observability/metrics"
	"github.com/healix-ai/backend/pkg/records"
	"github.com/healix-ai/backend/pkg/vitals"
)

const (
	DefaultDimension = "gender"
	DefaultAttribute = "bmi"
)

var (
	ErrConditionRequired = errors.New("condition name is required")
	ErrInvalidDimension  = errors.New("unsupported grouping dimension")
	ErrInvalidAttribute  = errors.New("unsupported attribute")
)

type PrevalenceRow struct {
	Group *string `json:"location"`
	Count int     `json:"prevalence_count"`
}

type AverageRow struct {
	Group     *string
	Attribute string
	Average   *float64
}

// MarshalJSON names the average after its attribute, e.g. "average_bmi".
func (r AverageRow) MarshalJSON() ([]byte, error) {
	return marshalAverage(r)
}

type DistributionRow struct {
	Category   string `json:"bp_category"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type Service struct {
	store records.Store
	cache Cache
}

// NewService builds the report service. cache may be nil.
func NewService(store records.Store, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

// Invalidate drops cached reports; it satisfies ingestion.Invalidator.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// ConditionPrevalence counts conditions with the exact description per
// dimension value, highest count first. Ties are broken by group with the
// null group first.
func (s *Service) ConditionPrevalence(ctx context.Context, description, dimension string) ([]PrevalenceRow, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrConditionRequired
	}
	if dimension == "" {
		dimension = DefaultDimension
	}
	if _, ok := records.Dimensions[dimension]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDimension, dimension)
	}

	key := fmt.Sprintf("prevalence:%s:%s", dimension, description)
	var rows []PrevalenceRow
	if s.cached(ctx, key, &rows) {
		return rows, nil
	}

	counts, err := s.store.ConditionCounts(ctx, description, dimension)
	if err != nil {
		return nil, fmt.Errorf("counting conditions: %w", err)
	}
	rows = make([]PrevalenceRow, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, PrevalenceRow{Group: c.Group, Count: c.Count})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return groupLess(rows[i].Group, rows[j].Group)
	})

	s.remember(ctx, key, rows)
	return rows, nil
}

// AverageBy averages attribute per dimension value, ordered by group
// ascending with the null group first. A group whose values are all null
// reports a null average.
func (s *Service) AverageBy(ctx context.Context, attribute, dimension string) ([]AverageRow, error) {
	if attribute == "" {
		attribute = DefaultAttribute
	}
	if dimension == "" {
		dimension = DefaultDimension
	}
	if _, ok := records.Attributes[attribute]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAttribute, attribute)
	}
	if _, ok := records.Dimensions[dimension]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDimension, dimension)
	}

	key := fmt.Sprintf("average:%s:%s", attribute, dimension)
	var rows []AverageRow
	if s.cached(ctx, key, &rows) {
		return rows, nil
	}

	averages, err := s.store.PatientAverages(ctx, attribute, dimension)
	if err != nil {
		return nil, fmt.Errorf("averaging %s: %w", attribute, err)
	}
	rows = make([]AverageRow, 0, len(averages))
	for _, a := range averages {
		rows = append(rows, AverageRow{Group: a.Group, Attribute: attribute, Average: a.Average})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return groupLess(rows[i].Group, rows[j].Group)
	})

	s.remember(ctx, key, rows)
	return rows, nil
}

// BPDistribution reports each known blood-pressure category as a share of
// all patients. Categories without patients and values outside the known
// label set are left out.
func (s *Service) BPDistribution(ctx context.Context) ([]DistributionRow, error) {
	const key = "bp-distribution"
	var rows []DistributionRow
	if s.cached(ctx, key, &rows) {
		return rows, nil
	}

	counts, err := s.store.PatientCategoryCounts(ctx, "bp_category")
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}
	total, err := s.store.CountPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting patients: %w", err)
	}

	byCategory := make(map[string]int, len(counts))
	for _, c := range counts {
		if c.Group != nil {
			byCategory[*c.Group] += c.Count
		}
	}
	rows = make([]DistributionRow, 0, len(vitals.Categories))
	for _, category := range vitals.Categories {
		count, ok := byCategory[category]
		if !ok {
			continue
		}
		rows = append(rows, DistributionRow{
			Category:   category,
			Count:      count,
			Percentage: Percentage(count, total),
		})
	}

	s.remember(ctx, key, rows)
	return rows, nil
}

// Percentage formats 100*count/total with two decimals, "0.00%" for an empty total.
func Percentage(count int, total int64) string {
	if total <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(count)/float64(total)*100)
}

func groupLess(a, b *string) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return *a < *b
	}
}

func (s *Service) cached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Report cache read failed")
		return false
	}
	metrics.ObserveCacheLookup(found)
	return found
}

func (s *Service) remember(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Report cache write failed")
	}
}
