package entity

// IO describes the files a Step exchanges with other steps.
type IO struct {
	Inputs  []string
	Outputs []string
	dummy   bool
}

// DummyIO is the descriptor of a step that exchanges no files.
func DummyIO() IO {
	return IO{dummy: true}
}

// IsDummy reports whether the descriptor was created by DummyIO.
func (io IO) IsDummy() bool {
	return io.dummy
}

func (io IO) clone() IO {
	out := IO{dummy: io.dummy}
	out.Inputs = append(out.Inputs, io.Inputs...)
	out.Outputs = append(out.Outputs, io.Outputs...)
	return out
}
