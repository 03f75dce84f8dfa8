// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pfelf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuildIDFromNotes(t *testing.T) {
	tests := map[string]struct {
		notes   []byte
		want    string
		wantErr error
	}{
		"gnu build id": {
			notes: []byte{4, 0, 0, 0, 4, 0, 0, 0, 3, 0, 0, 0, 'G', 'N', 'U', 0,
				0xde, 0xad, 0xbe, 0xef},
			want: "deadbeef",
		},
		"other note": {
			notes: []byte{4, 0, 0, 0, 4, 0, 0, 0, 1, 0, 0, 0, 'G', 'N', 'U', 0,
				0xde, 0xad, 0xbe, 0xef},
			wantErr: ErrNoBuildID,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := getBuildIDFromNotes(tc.notes)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetBuildIDTruncatedNote(t *testing.T) {
	notes := []byte{4, 0, 0, 0, 0x40, 0, 0, 0, 3, 0, 0, 0, 'G', 'N', 'U', 0, 0xde}
	_, err := getBuildIDFromNotes(notes)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoBuildID)
}
