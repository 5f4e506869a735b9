package snapshot

import (
	"fmt"

	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/state"
)

// Validate checks that every node diff touches exists in r and that every
// status token is part of the enumeration. iens is the key r is stored
// under and is used to build addresses for errors.
func (r *Realization) Validate(iens string, diff *RealizationDiff) error {
	if diff == nil {
		return nil
	}
	if err := validStatus(diff.Status, nodeid.Address{Real: iens}); err != nil {
		return err
	}
	for sk, sd := range diff.Stages {
		addr := nodeid.Address{Real: iens, Stage: sk}
		st, ok := r.Stages[sk]
		if !ok {
			return &UnknownAddressError{Address: addr}
		}
		if sd == nil {
			continue
		}
		if err := validStatus(sd.Status, addr); err != nil {
			return err
		}
		for pk, pd := range sd.Steps {
			addr := addr
			addr.Step = pk
			sp, ok := st.Steps[pk]
			if !ok {
				return &UnknownAddressError{Address: addr}
			}
			if pd == nil {
				continue
			}
			if err := validStatus(pd.Status, addr); err != nil {
				return err
			}
			for jk, jd := range pd.Jobs {
				addr := addr
				addr.Job = jk
				if _, ok := sp.Jobs[jk]; !ok {
					return &UnknownAddressError{Address: addr}
				}
				if jd != nil {
					if err := validStatus(jd.Status, addr); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Apply overwrites the fields of r set in diff. Call Validate first: Apply
// skips nodes that do not exist rather than creating them.
func (r *Realization) Apply(diff *RealizationDiff) {
	if diff == nil {
		return
	}
	setValue(&r.Status, diff.Status)
	setValue(&r.Active, diff.Active)
	setIf(&r.StartTime, diff.StartTime)
	setIf(&r.EndTime, diff.EndTime)
	for sk, sd := range diff.Stages {
		st, ok := r.Stages[sk]
		if !ok || sd == nil {
			continue
		}
		setValue(&st.Status, sd.Status)
		setIf(&st.StartTime, sd.StartTime)
		setIf(&st.EndTime, sd.EndTime)
		for pk, pd := range sd.Steps {
			sp, ok := st.Steps[pk]
			if !ok || pd == nil {
				continue
			}
			setValue(&sp.Status, pd.Status)
			setIf(&sp.StartTime, pd.StartTime)
			setIf(&sp.EndTime, pd.EndTime)
			for jk, jd := range pd.Jobs {
				if j, ok := sp.Jobs[jk]; ok && jd != nil {
					j.apply(jd)
				}
			}
		}
	}
}

func (j *Job) apply(d *JobDiff) {
	setValue(&j.Status, d.Status)
	setIf(&j.StartTime, d.StartTime)
	setIf(&j.EndTime, d.EndTime)
	setValue(&j.Stdout, d.Stdout)
	setValue(&j.Stderr, d.Stderr)
	setValue(&j.Error, d.Error)
	if len(d.Data) > 0 {
		if j.Data == nil {
			j.Data = make(map[string]any, len(d.Data))
		}
		for k, v := range d.Data {
			j.Data[k] = cloneValue(v)
		}
	}
}

// ValidateShape checks that every node of full exists in shape. A full
// realization may omit nodes; they keep their default state.
func ValidateShape(iens string, shape, full *Realization) error {
	if full == nil {
		return nil
	}
	if full.Status != "" {
		if err := validStatus(&full.Status, nodeid.Address{Real: iens}); err != nil {
			return err
		}
	}
	for sk, st := range full.Stages {
		addr := nodeid.Address{Real: iens, Stage: sk}
		shapeStage, ok := shape.Stages[sk]
		if !ok {
			return &UnknownAddressError{Address: addr}
		}
		if st == nil {
			continue
		}
		for pk, sp := range st.Steps {
			addr := addr
			addr.Step = pk
			shapeStep, ok := shapeStage.Steps[pk]
			if !ok {
				return &UnknownAddressError{Address: addr}
			}
			if sp == nil {
				continue
			}
			for jk := range sp.Jobs {
				if _, ok := shapeStep.Jobs[jk]; !ok {
					addr := addr
					addr.Job = jk
					return &UnknownAddressError{Address: addr}
				}
			}
		}
	}
	return nil
}

// Overlay returns a copy of shape with every node present in full replaced
// by its value from full. full must have passed ValidateShape against shape.
func Overlay(shape, full *Realization) *Realization {
	out := shape.Clone()
	if full == nil {
		return out
	}
	out.Status = orDefault(full.Status, out.Status)
	out.Active = full.Active
	out.StartTime = cloneTime(full.StartTime)
	out.EndTime = cloneTime(full.EndTime)
	for sk, st := range full.Stages {
		if st == nil {
			continue
		}
		dst := out.Stages[sk]
		dst.Status = orDefault(st.Status, dst.Status)
		dst.StartTime = cloneTime(st.StartTime)
		dst.EndTime = cloneTime(st.EndTime)
		if st.Name != "" {
			dst.Name = st.Name
		}
		for pk, sp := range st.Steps {
			if sp == nil {
				continue
			}
			dstStep := dst.Steps[pk]
			dstStep.Status = orDefault(sp.Status, dstStep.Status)
			dstStep.StartTime = cloneTime(sp.StartTime)
			dstStep.EndTime = cloneTime(sp.EndTime)
			for jk, j := range sp.Jobs {
				if j == nil {
					continue
				}
				def := dstStep.Jobs[jk]
				c := j.Clone()
				c.Status = orDefault(c.Status, def.Status)
				if c.Name == "" {
					c.Name = def.Name
				}
				dstStep.Jobs[jk] = c
			}
		}
	}
	return out
}

func orDefault(s, def state.Status) state.Status {
	if s == "" {
		return def
	}
	return s
}

func validStatus(s *state.Status, addr nodeid.Address) error {
	if s != nil && !s.Valid() {
		return fmt.Errorf("%w %q at %s", ErrInvalidStatus, *s, addr)
	}
	return nil
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
