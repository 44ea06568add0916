package core

import (
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateChecksumFormat(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "real digest", value: realChecksum},
		{name: "uppercase digest", value: strings.ToUpper(realChecksum)},
		{name: "surrounding whitespace", value: "  " + realChecksum + "\n"},
		{name: "empty", value: "", wantErr: true},
		{name: "63 characters", value: realChecksum[:63], wantErr: true},
		{name: "65 characters", value: realChecksum + "a", wantErr: true},
		{name: "non hex", value: strings.Repeat("g", 64), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChecksumFormat(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIsPlaceholderChecksum(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "real digest", value: realChecksum, want: false},
		{name: "repeated counting pattern", value: placeholderChecksum, want: true},
		{name: "short counting pattern", value: placeholderChecksum[:63], want: true},
		{name: "long counting pattern", value: placeholderChecksum + "1", want: true},
		{name: "zero digest", value: strings.Repeat("0", 64), want: true},
		{name: "deadbeef", value: strings.Repeat("deadbeef", 8), want: true},
		{name: "too short to judge", value: "abab", want: false},
		{name: "not hex", value: strings.Repeat("xy", 32), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, IsPlaceholderChecksum(tt.value)); diff != "" {
				t.Fatalf("IsPlaceholderChecksum(%q) mismatch (-want +got):\n%s", tt.value, diff)
			}
		})
	}
}

func TestValidateChecksumRejectsPlaceholder(t *testing.T) {
	err := ValidateChecksum(placeholderChecksum)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
	require.NoError(t, ValidateChecksum(realChecksum))
}

func TestVerifyDigest(t *testing.T) {
	require.NoError(t, VerifyDigest(realChecksum, strings.ToUpper(realChecksum)))

	err := VerifyDigest(realChecksum, placeholderChecksum)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "checksum mismatch")
}
