package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()
	patients := []Patient{
		{ID: "1", Gender: strPtr("F"), BMI: floatPtr(20), BPCategory: strPtr("normal")},
		{ID: "2", Gender: strPtr("F"), BMI: floatPtr(30), BPCategory: strPtr("severe")},
		{ID: "3", Gender: strPtr("M"), BMI: nil, BPCategory: strPtr("normal")},
		{ID: "4", Gender: nil, BMI: floatPtr(25)},
	}
	for i := range patients {
		require.NoError(t, store.CreatePatient(ctx, &patients[i]))
	}
	for _, pid := range []string{"1", "2", "3"} {
		require.NoError(t, store.CreateCondition(ctx, &Condition{PatientID: pid, Description: strPtr("Hypertension")}))
	}
	require.NoError(t, store.CreateCondition(ctx, &Condition{PatientID: "1", Description: strPtr("Asthma")}))
	return store
}

func findCount(rows []GroupCount, group *string) (int, bool) {
	for _, row := range rows {
		if (row.Group == nil && group == nil) || (row.Group != nil && group != nil && *row.Group == *group) {
			return row.Count, true
		}
	}
	return 0, false
}

func TestMemoryConditionCounts(t *testing.T) {
	store := seedStore(t)
	rows, err := store.ConditionCounts(context.Background(), "Hypertension", "gender")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	count, ok := findCount(rows, strPtr("F"))
	assert.True(t, ok)
	assert.Equal(t, 2, count)
	count, ok = findCount(rows, strPtr("M"))
	assert.True(t, ok)
	assert.Equal(t, 1, count)

	_, err = store.ConditionCounts(context.Background(), "Hypertension", "id; DROP TABLE patients")
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestMemoryPatientAverages(t *testing.T) {
	store := seedStore(t)
	rows, err := store.PatientAverages(context.Background(), "bmi", "gender")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows {
		switch {
		case row.Group == nil:
			require.NotNil(t, row.Average)
			assert.Equal(t, 25.0, *row.Average)
		case *row.Group == "F":
			assert.Equal(t, 25.0, *row.Average)
		case *row.Group == "M":
			assert.Nil(t, row.Average)
		}
	}

	_, err = store.PatientAverages(context.Background(), "password", "gender")
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestMemoryCategoryCounts(t *testing.T) {
	store := seedStore(t)
	rows, err := store.PatientCategoryCounts(context.Background(), "bp_category")
	require.NoError(t, err)

	count, _ := findCount(rows, strPtr("normal"))
	assert.Equal(t, 2, count)
	count, _ = findCount(rows, nil)
	assert.Equal(t, 1, count)

	total, err := store.CountPatients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}
