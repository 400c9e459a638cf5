// Package vitals holds the blood-pressure category policy shared by record
// creation and model feature assembly.
package vitals

const (
	Normal       = "normal"
	Hypertensive = "hypertensive"
	Severe       = "severe"
	Crisis       = "crisis"
)

// Categories is the closed label set, in bin order.
var Categories = []string{Normal, Hypertensive, Severe, Crisis}

// binEdges are right-closed: (0,120], (120,140], (140,180], (180,300].
var binEdges = []float64{0, 120, 140, 180, 300}

// Category maps a systolic pressure onto its label. Values outside (0,300]
// are not categorised.
func Category(systolic float64) (string, bool) {
	for i := 1; i < len(binEdges); i++ {
		if systolic > binEdges[i-1] && systolic <= binEdges[i] {
			return Categories[i-1], true
		}
	}
	return "", false
}

// CategoryPtr is Category for nullable readings.
func CategoryPtr(systolic *float64) *string {
	if systolic == nil {
		return nil
	}
	label, ok := Category(*systolic)
	if !ok {
		return nil
	}
	return &label
}

func IsCategory(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}
