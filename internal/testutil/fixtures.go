package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/entity"
)

// EnsembleBuilder returns a builder for reals realizations, each with one
// stage holding one step of jobs jobs. Job j runs executable.
func EnsembleBuilder(reals, jobs int, executable string) *entity.EnsembleBuilder {
	b := entity.NewEnsembleBuilder()
	for i := 0; i < reals; i++ {
		step := entity.NewStepBuilder().SetID(0).SetDummyIO()
		for j := 0; j < jobs; j++ {
			step.AddJob(entity.NewJobBuilder().SetID(j).SetExtJob(entity.ExtJob{
				Name:       fmt.Sprintf("job%d", j),
				Executable: executable,
				Stdout:     fmt.Sprintf("job%d.stdout", j),
				Stderr:     fmt.Sprintf("job%d.stderr", j),
			}))
		}
		b.AddRealization(entity.NewRealizationBuilder().SetIens(i).
			AddStage(entity.NewStageBuilder().SetID(0).SetName("forward_model").AddStep(step)))
	}
	return b
}

// Ensemble builds the fixture of EnsembleBuilder and fails the test on error.
func Ensemble(t *testing.T, reals, jobs int) *entity.Ensemble {
	t.Helper()
	ens, err := EnsembleBuilder(reals, jobs, "/bin/true").Build()
	require.NoError(t, err)
	return ens
}
