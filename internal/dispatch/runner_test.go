package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/entity"
)

func shellJob(t *testing.T, ext entity.ExtJob) *entity.Job {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	ext.Executable = "/bin/sh"
	if ext.Name == "" {
		ext.Name = "sh"
	}
	r, err := entity.NewRealizationBuilder().SetIens(0).
		AddStage(entity.NewStageBuilder().SetID(0).SetName("s").AddStep(
			entity.NewStepBuilder().SetID(0).SetDummyIO().AddJob(
				entity.NewJobBuilder().SetID(0).SetExtJob(ext)))).
		Build()
	require.NoError(t, err)
	return r.Stages()[0].Steps()[0].Jobs()[0]
}

func TestExecRunner(t *testing.T) {
	testCases := []struct {
		name    string
		ext     entity.ExtJob
		wantErr string
	}{
		{
			name: "writes stdout",
			ext:  entity.ExtJob{ArgList: []string{"-c", "echo hello"}, Stdout: "out.txt"},
		},
		{
			name: "environment is passed",
			ext: entity.ExtJob{
				ArgList:     []string{"-c", `test "$FOO" = bar && touch target`},
				Environment: map[string]string{"FOO": "bar"},
				TargetFile:  "target",
			},
		},
		{
			name:    "non-zero exit",
			ext:     entity.ExtJob{ArgList: []string{"-c", "exit 3"}},
			wantErr: "exit status 3",
		},
		{
			name:    "missing target file",
			ext:     entity.ExtJob{ArgList: []string{"-c", "true"}, TargetFile: "never"},
			wantErr: "target file never was not created",
		},
		{
			name:    "error file present",
			ext:     entity.ExtJob{ArgList: []string{"-c", "touch ERROR"}, ErrorFile: "ERROR"},
			wantErr: "error file ERROR was created",
		},
		{
			name:    "too few arguments",
			ext:     entity.ExtJob{ArgList: []string{"-c"}, MinArg: 2},
			wantErr: "needs at least 2 arguments",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			job := shellJob(t, tc.ext)

			err := ExecRunner{}.Run(context.Background(), job, dir)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			if tc.ext.Stdout != "" {
				out, err := os.ReadFile(filepath.Join(dir, tc.ext.Stdout))
				require.NoError(t, err)
				assert.Equal(t, "hello\n", string(out))
			}
		})
	}
}

func TestWriteJobsJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "realization-0")
	exts := []entity.ExtJob{
		{Name: "copy", Executable: "/bin/cp", ArgList: []string{"a", "b"}, Environment: map[string]string{"K": "V"}},
		{Name: "sim", Executable: "/opt/sim", Stdout: "sim.stdout", MaxRunningMinutes: 30},
	}
	step := entity.NewStepBuilder().SetID(0).SetDummyIO()
	for i, ext := range exts {
		step.AddJob(entity.NewJobBuilder().SetID(i).SetExtJob(ext))
	}
	r, err := entity.NewRealizationBuilder().SetIens(0).SetRunPath(dir).
		AddStage(entity.NewStageBuilder().SetID(0).SetName("s").AddStep(step)).
		Build()
	require.NoError(t, err)

	require.NoError(t, WriteJobsJSON(dir, r))

	got, err := ReadJobsJSON(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(exts, got); diff != "" {
		t.Errorf("job list mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(filepath.Join(dir, JobsFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"umask": "0022"`)
	assert.Contains(t, string(raw), `"argList"`)
}
