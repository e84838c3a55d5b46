package domain

import "go.trai.ch/zerr"

// Arg is a bound argument. An argument with a Ref but no Value is missing: its
// upstream task did not run in the current run and its output must be rehydrated.
type Arg struct {
	Name  string
	Value Value
	Ref   *Ref
}

// Missing reports whether the argument still waits for an upstream output.
func (a Arg) Missing() bool {
	return a.Ref != nil && a.Value == nil
}

// Args is the canonical ordered form of a task's arguments.
type Args []Arg

// Get returns the value bound to name, or nil when the name is unknown or missing.
func (a Args) Get(name string) Value {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value
		}
	}
	return nil
}

// With returns a copy of the arguments where name is bound to v.
func (a Args) With(name string, v Value) Args {
	out := make(Args, len(a))
	copy(out, a)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = v
		}
	}
	return out
}

// Missing returns the indexes of arguments that still wait for an upstream output.
func (a Args) Missing() []int {
	var idx []int
	for i, arg := range a {
		if arg.Missing() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Mapping returns the bound values keyed by parameter name. Missing arguments are left out.
func (a Args) Mapping() Mapping {
	m := make(Mapping, len(a))
	for _, arg := range a {
		if arg.Value != nil {
			m[arg.Name] = arg.Value
		}
	}
	return m
}

// Canonical returns the value that identifies the arguments for hashing.
// A missing argument is replaced by the identity of the output it references,
// so the key is stable until the upstream task is rehydrated.
func (a Args) Canonical() Value {
	m := make(Mapping, len(a))
	for _, arg := range a {
		if arg.Missing() {
			m[arg.Name] = Mapping{
				"$ref":   String(arg.Ref.Task.String()),
				"$index": Int(arg.Ref.Index),
			}
			continue
		}
		m[arg.Name] = arg.Value
	}
	return m
}

// Select returns element index of v, or v itself for WholeOutput.
func Select(v Value, index int) (Value, error) {
	if index == WholeOutput {
		return v, nil
	}
	seq, ok := v.(Sequence)
	if !ok || index < 0 || index >= len(seq) {
		return nil, zerr.With(zerr.Wrap(ErrOutputArity, "no output at index"), "index", index)
	}
	return seq[index], nil
}
