package state_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkcloud/go-settings/pkg/state"
)

func TestRefIdentifier(t *testing.T) {
	raw, err := os.ReadFile("testdata/state_identifier.json")
	require.NoError(t, err)

	var fixture struct {
		Cases []struct {
			Name   string    `json:"name"`
			Ref    state.Ref `json:"ref"`
			Expect struct {
				Value string `json:"value"`
				Err   string `json:"err"`
			} `json:"expect"`
		} `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(raw, &fixture))
	require.NotEmpty(t, fixture.Cases)

	for _, tc := range fixture.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := tc.Ref.Identifier()
			if tc.Expect.Err != "" {
				assert.EqualError(t, err, tc.Expect.Err)
				assert.ErrorIs(t, err, state.ErrInvalidRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Expect.Value, got)
		})
	}
}
