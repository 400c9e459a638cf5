package ingestion

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindPatients     Kind = "patients"
	KindConditions   Kind = "conditions"
	KindObservations Kind = "observations"
)

var ErrUnknownKind = errors.New("unknown dataset kind")

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPatients, KindConditions, KindObservations:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// SuccessMessage is the acknowledgement returned for a finished upload.
func (k Kind) SuccessMessage() string {
	s := string(k)
	if s == "" {
		return "Data uploaded successfully."
	}
	return strings.ToUpper(s[:1]) + s[1:] + " data uploaded successfully."
}

// FailurePolicy decides what happens to the rest of a batch after a bad row.
type FailurePolicy string

const (
	PolicyAbort FailurePolicy = "abort"
	PolicySkip  FailurePolicy = "skip"
)

func ParsePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyAbort, nil
	case PolicyAbort, PolicySkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}
