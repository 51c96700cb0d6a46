package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, CodeOK},
		{"invalid input", New(InvalidInput, "bad"), CodeUsage},
		{"not found", New(NotFound, "missing"), CodeResolution},
		{"ambiguous", NewAmbiguous("b", []string{"blog", "bot"}), CodeResolution},
		{"configuration", New(ConfigurationError, "broken"), CodeUsage},
		{"precondition", New(PreconditionFailed, "no compose file"), CodePrecondition},
		{"execution with code", NewExecution(7, "exit 7"), 7},
		{"execution without code", NewExecution(0, "failed"), 1},
		{"unknown kind", &Error{Kind: "other"}, 1},
		{"unclassified", errors.New("boom"), 1},
		{"wrapped", fmt.Errorf("load: %w", New(NotFound, "missing")), CodeResolution},
		{"wrapped execution", fmt.Errorf("run: %w", NewExecution(42, "x")), 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("resolve: %w", New(Ambiguous, "x"))
	assert.True(t, Is(err, Ambiguous))
	assert.False(t, Is(err, NotFound))
	assert.False(t, Is(errors.New("plain"), NotFound))
}

func TestAmbiguousMessage(t *testing.T) {
	err := NewAmbiguous("photo", []string{"photos-a", "photos-b"})
	assert.Equal(t, "service is ambiguous: photo -> photos-a, photos-b", err.Error())
	assert.Equal(t, "service is ambiguous: photo", NewAmbiguous("photo", nil).Error())
}
