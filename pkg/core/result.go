// pkg/core/result.go
package core

// OpResult is the outcome code of a single-world operation.
type OpResult int

const (
	Success OpResult = iota
	Failed
	NotSupported
)

func (r OpResult) String() string {
	switch r {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case NotSupported:
		return "not supported"
	default:
		return "unknown"
	}
}

// ModelLoadResult is the outcome of inserting one model into one world.
// ModelID differs from the requested name only when the caller asked for a rename.
type ModelLoadResult struct {
	ModelID string
	Result  OpResult
	Err     error
}

// OK reports whether the model was loaded.
func (r ModelLoadResult) OK() bool {
	return r.Result == Success
}

// Worldfile pairs a scene resource with the name the loaded world gets.
type Worldfile struct {
	Filename string
	Name     string
}
