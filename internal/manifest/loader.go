package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/fsutil"
	"github.com/vk/ensembleeval/internal/rangestr"
)

// Queue defaults applied when the manifest leaves a field out.
const (
	DefaultQueueSystem = "LOCAL"
	DefaultMaxSubmit   = 1
	DefaultNumCPU      = 1
)

// Manifest is a decoded ensemble description.
type Manifest struct {
	Filename string
	Size     int
	// Active marks which realizations are dispatched.
	Active   []bool
	Queue    entity.QueueConfig
	Analysis entity.AnalysisConfig

	block      *ensembleBlock
	maxRuntime time.Duration
}

// Load reads the manifest at path. A directory is searched recursively for
// .hcl files; exactly one ensemble block must exist across all of them.
func Load(ctx context.Context, path string) (*Manifest, error) {
	files, err := fsutil.FindFiles(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	parser := hclparse.NewParser()
	var blocks []*ensembleBlock
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
		found, err := decode(parser, file, src)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, found...)
	}
	return fromBlocks(ctx, path, blocks)
}

// Parse decodes a manifest from src. filename is used in diagnostics.
func Parse(ctx context.Context, filename string, src []byte) (*Manifest, error) {
	blocks, err := decode(hclparse.NewParser(), filename, src)
	if err != nil {
		return nil, err
	}
	return fromBlocks(ctx, filename, blocks)
}

func decode(parser *hclparse.Parser, filename string, src []byte) ([]*ensembleBlock, error) {
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}
	return root.Ensembles, nil
}

func fromBlocks(ctx context.Context, filename string, blocks []*ensembleBlock) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx).With("manifest", filename)
	logger.Debug("Manifest loader started.")

	if len(blocks) != 1 {
		return nil, fmt.Errorf("manifest %s: expected exactly one ensemble block, found %d", filename, len(blocks))
	}
	block := blocks[0]

	if block.Size <= 0 {
		return nil, fmt.Errorf("manifest %s: size must be positive, got %d", filename, block.Size)
	}
	if len(block.Stages) == 0 {
		return nil, fmt.Errorf("manifest %s: at least one stage block is required", filename)
	}

	m := &Manifest{
		Filename: filename,
		Size:     block.Size,
		Active:   rangestr.All(block.Size),
		Queue:    queueConfig(block.Queue),
		Analysis: analysisConfig(block.Analysis),
		block:    block,
	}
	if block.Active != nil {
		if err := m.SetActive(*block.Active); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", filename, err)
		}
	}
	var err error
	if m.maxRuntime, err = parseDuration(block.MaxRuntime); err != nil {
		return nil, fmt.Errorf("manifest %s: max_runtime: %w", filename, err)
	}
	for _, stage := range block.Stages {
		if _, err := parseDuration(stage.MaxRuntime); err != nil {
			return nil, fmt.Errorf("manifest %s: stage %q: max_runtime: %w", filename, stage.Name, err)
		}
	}

	logger.Debug("Manifest loading complete.", "size", m.Size, "active", rangestr.Format(m.Active), "stages", len(block.Stages))
	return m, nil
}

// SetActive replaces the active mask with the realizations named in a
// range string such as "0-4, 7".
func (m *Manifest) SetActive(ranges string) error {
	mask, err := rangestr.Parse(ranges, m.Size)
	if err != nil {
		return fmt.Errorf("active realizations: %w", err)
	}
	m.Active = mask
	return nil
}

// Dependencies returns the queue and analysis settings.
func (m *Manifest) Dependencies() entity.Dependencies {
	return entity.Dependencies{Queue: m.Queue, Analysis: m.Analysis}
}

// Builder returns a fresh ensemble builder for the manifest. Expressions
// are evaluated for every realization.
func (m *Manifest) Builder() (*entity.EnsembleBuilder, error) {
	b := entity.NewEnsembleBuilder().SetDependencies(m.Queue, m.Analysis)
	var errs []error
	for iens := 0; iens < m.Size; iens++ {
		real, err := m.realization(iens)
		if err != nil {
			errs = append(errs, fmt.Errorf("realization %d: %w", iens, err))
			continue
		}
		b.AddRealization(real)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", m.Filename, err)
	}
	return b, nil
}

// Build builds the ensemble described by the manifest.
func (m *Manifest) Build() (*entity.Ensemble, error) {
	b, err := m.Builder()
	if err != nil {
		return nil, err
	}
	return b.RequireDependencies().Build()
}

func (m *Manifest) realization(iens int) (*entity.RealizationBuilder, error) {
	evalCtx := evalContext(iens)

	runPath, _, err := evalString(m.block.RunPath, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("run_path: %w", err)
	}

	rb := entity.NewRealizationBuilder().
		SetIens(iens).
		SetActive(m.Active[iens]).
		SetRunPath(runPath).
		SetMaxRuntime(m.maxRuntime).
		SetCallbackArguments(runPath)

	for stageID, sb := range m.block.Stages {
		stage, err := buildStage(stageID, sb, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", sb.Name, err)
		}
		rb.AddStage(stage)
	}
	return rb, nil
}

func buildStage(id int, sb *stageBlock, evalCtx *hcl.EvalContext) (*entity.StageBuilder, error) {
	runPath, _, err := evalString(sb.RunPath, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("run_path: %w", err)
	}
	maxRuntime, _ := parseDuration(sb.MaxRuntime)

	stage := entity.NewStageBuilder().
		SetID(id).
		SetName(sb.Name).
		SetRunPath(runPath).
		SetMaxRuntime(maxRuntime).
		SetJobScript(deref(sb.JobScript))

	for stepID, step := range sb.Steps {
		stepBuilder := entity.NewStepBuilder().SetID(stepID)
		if len(step.Inputs) == 0 && len(step.Outputs) == 0 {
			stepBuilder.SetDummyIO()
		} else {
			stepBuilder.SetIO(entity.IO{Inputs: step.Inputs, Outputs: step.Outputs})
		}
		for jobID, jb := range step.Jobs {
			ext, err := extJob(jb, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("job %q: %w", jb.Name, err)
			}
			stepBuilder.AddJob(entity.NewJobBuilder().SetID(jobID).SetName(jb.Name).SetExtJob(ext))
		}
		stage.AddStep(stepBuilder)
	}
	return stage, nil
}

func extJob(jb *jobBlock, evalCtx *hcl.EvalContext) (entity.ExtJob, error) {
	args, err := evalStrings(jb.Args, evalCtx)
	if err != nil {
		return entity.ExtJob{}, fmt.Errorf("args: %w", err)
	}
	stdin, _, err := evalString(jb.Stdin, evalCtx)
	if err != nil {
		return entity.ExtJob{}, fmt.Errorf("stdin: %w", err)
	}
	return entity.ExtJob{
		Name:              jb.Name,
		Executable:        jb.Executable,
		TargetFile:        deref(jb.TargetFile),
		ErrorFile:         deref(jb.ErrorFile),
		StartFile:         deref(jb.StartFile),
		Stdout:            orDefault(jb.Stdout, jb.Name+".stdout"),
		Stderr:            orDefault(jb.Stderr, jb.Name+".stderr"),
		Stdin:             stdin,
		LicensePath:       deref(jb.LicensePath),
		Environment:       jb.Environment,
		ExecEnv:           jb.ExecEnv,
		MaxRunning:        deref(jb.MaxRunning),
		MaxRunningMinutes: deref(jb.MaxRunningMinutes),
		MinArg:            deref(jb.MinArg),
		MaxArg:            deref(jb.MaxArg),
		ArgTypes:          jb.ArgTypes,
		ArgList:           args,
	}, nil
}

func queueConfig(q *queueBlock) entity.QueueConfig {
	cfg := entity.QueueConfig{
		QueueSystem: DefaultQueueSystem,
		MaxSubmit:   DefaultMaxSubmit,
		NumCPU:      DefaultNumCPU,
	}
	if q == nil {
		return cfg
	}
	cfg.QueueSystem = orDefault(q.System, cfg.QueueSystem)
	cfg.JobScript = deref(q.JobScript)
	cfg.MaxSubmit = orDefault(q.MaxSubmit, cfg.MaxSubmit)
	cfg.MaxRunning = deref(q.MaxRunning)
	cfg.NumCPU = orDefault(q.NumCPU, cfg.NumCPU)
	cfg.Options = q.Options
	return cfg
}

func analysisConfig(a *analysisBlock) entity.AnalysisConfig {
	if a == nil {
		return entity.AnalysisConfig{}
	}
	return entity.AnalysisConfig{
		StopLongRunning: deref(a.StopLongRunning),
		MinRealizations: deref(a.MinRealizations),
	}
}

func parseDuration(raw *string) (time.Duration, error) {
	if raw == nil || *raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %s", d)
	}
	return d, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func orDefault[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
