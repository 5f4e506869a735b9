package snapshot

import (
	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/state"
)

// Node is the result of looking up an address: a copy of exactly one of
// the four node kinds, matching the address level.
type Node struct {
	Address     nodeid.Address
	Realization *Realization
	Stage       *Stage
	Step        *Step
	Job         *Job
}

// Status returns the status of whichever node is set.
func (n *Node) Status() state.Status {
	switch {
	case n.Job != nil:
		return n.Job.Status
	case n.Step != nil:
		return n.Step.Status
	case n.Stage != nil:
		return n.Stage.Status
	case n.Realization != nil:
		return n.Realization.Status
	default:
		return state.Unknown
	}
}

// Lookup returns a copy of the subtree at addr inside r, which is stored
// under addr.Real.
func (r *Realization) Lookup(addr nodeid.Address) (*Node, error) {
	node := &Node{Address: addr}
	if addr.Level() == nodeid.LevelRealization {
		node.Realization = r.Clone()
		return node, nil
	}
	st, ok := r.Stages[addr.Stage]
	if !ok {
		return nil, &UnknownAddressError{Address: addr}
	}
	if addr.Level() == nodeid.LevelStage {
		node.Stage = st.Clone()
		return node, nil
	}
	sp, ok := st.Steps[addr.Step]
	if !ok {
		return nil, &UnknownAddressError{Address: addr}
	}
	if addr.Level() == nodeid.LevelStep {
		node.Step = sp.Clone()
		return node, nil
	}
	j, ok := sp.Jobs[addr.Job]
	if !ok {
		return nil, &UnknownAddressError{Address: addr}
	}
	node.Job = j.Clone()
	return node, nil
}
