package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		expectErr    bool
		expectedAddr Address
	}{
		{
			name:         "realization",
			raw:          "reals.3",
			expectedAddr: Real(3),
		},
		{
			name:         "full job path",
			raw:          "reals.1.stages.0.steps.0.jobs.1",
			expectedAddr: Job(1, 0, 0, 1),
		},
		{
			name:         "step subtree",
			raw:          "reals.0.stages.2.steps.5",
			expectedAddr: Real(0).WithStage(2).WithStep(5),
		},
		{
			name:      "error - empty string",
			raw:       "",
			expectErr: true,
		},
		{
			name:      "error - dangling segment",
			raw:       "reals.1.stages",
			expectErr: true,
		},
		{
			name:      "error - levels out of order",
			raw:       "reals.1.steps.0",
			expectErr: true,
		},
		{
			name:      "error - empty key",
			raw:       "reals..stages.0",
			expectErr: true,
		},
		{
			name:      "error - too deep",
			raw:       "reals.0.stages.0.steps.0.jobs.0.extra.1",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := Parse(tc.raw)

			if tc.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedAddr, addr)
		})
	}
}
