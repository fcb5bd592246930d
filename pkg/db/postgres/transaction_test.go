package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("insert booking: %w", &pq.Error{Code: pq.ErrorCode(code)})
	}

	tests := []struct {
		name          string
		err           error
		overlap       bool
		unique        bool
		serialization bool
	}{
		{"exclusion", wrap("23P01"), true, false, false},
		{"unique", wrap("23505"), true, true, false},
		{"serialization", wrap("40001"), false, false, true},
		{"deadlock", wrap("40P01"), false, false, true},
		{"foreign key", wrap("23503"), false, false, false},
		{"plain", errors.New("boom"), false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOverlapViolation(tt.err); got != tt.overlap {
				t.Errorf("IsOverlapViolation() = %v", got)
			}
			if got := IsUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("IsUniqueViolation() = %v", got)
			}
			if got := IsSerializationFailure(tt.err); got != tt.serialization {
				t.Errorf("IsSerializationFailure() = %v", got)
			}
		})
	}
}
