package packager

import "sort"

// Result is the summary of one PrecacheAll pass.
type Result struct {
	OutputDir string

	// FinalState is the state each selected package ended the pass in.
	FinalState PassState

	// BuildOrder lists the packages that entered BUILDING, in visit order.
	BuildOrder []PackageKey

	// Written records the files persisted per package, gzip siblings included.
	Written map[PackageKey][]string
}

func newResult(outputDir string) *Result {
	return &Result{
		OutputDir:  outputDir,
		FinalState: PassState{},
		Written:    map[PackageKey][]string{},
	}
}

// InState returns the packages that ended in s, sorted by type then name.
func (r *Result) InState(s PackageState) []PackageKey {
	if r == nil {
		return nil
	}
	var out []PackageKey
	for k, st := range r.FinalState {
		if st == s {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type > out[j].Type // js before css
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Files returns every written path in build order.
func (r *Result) Files() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, k := range r.BuildOrder {
		out = append(out, r.Written[k]...)
	}
	return out
}
