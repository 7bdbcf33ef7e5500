package xla

import (
	"fmt"
	"reflect"
)

// InfeedQueue supplies additional arguments to a computation beyond the
// explicit input list.
type InfeedQueue interface {
	// NumberOfTupleElements is how many arguments the queue contributes
	// per invocation.
	NumberOfTupleElements() int
}

// ArgSpec describes the argument surface of a computation function.
// Go functions have no default parameter values, so reflection always
// reports zero defaults; callers whose calling convention treats trailing
// arguments as optional construct an ArgSpec directly.
type ArgSpec struct {
	// Params is the number of declared parameters, excluding a variadic
	// tail.
	Params int
	// Defaults is how many trailing parameters have default values.
	Defaults int
	// Variadic reports whether the function accepts a variable-length
	// argument tail.
	Variadic bool
}

// ArgSpecOf inspects a function value.
func ArgSpecOf(fn any) (ArgSpec, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return ArgSpec{}, fmt.Errorf("not a function: %T", fn)
	}
	spec := ArgSpec{Params: t.NumIn(), Variadic: t.IsVariadic()}
	if spec.Variadic {
		spec.Params--
	}
	return spec, nil
}

// CheckArgumentCount validates that a function described by spec can be
// called with inputArity explicit arguments plus whatever the infeed queue
// contributes. It returns "" when the count is acceptable, otherwise a
// human-readable complaint such as "exactly 3 arguments" or "at least 2
// arguments" for the caller to raise or report.
func CheckArgumentCount(spec ArgSpec, inputArity int, infeed InfeedQueue) string {
	formatError := func(complaint string, quantity int) string {
		suffix := "s"
		if quantity == 1 {
			suffix = ""
		}
		return fmt.Sprintf("%s %d argument%s", complaint, quantity, suffix)
	}

	supplied := inputArity
	if infeed != nil {
		supplied += infeed.NumberOfTupleElements()
	}

	minArgs := spec.Params - spec.Defaults
	if supplied < minArgs {
		// Not enough arguments to call the function at all.
		if spec.Defaults == 0 && !spec.Variadic {
			return formatError("exactly", spec.Params)
		}
		return formatError("at least", minArgs)
	}
	if !spec.Variadic && supplied > spec.Params {
		if spec.Defaults == 0 {
			return formatError("exactly", spec.Params)
		}
		return formatError("at most", spec.Params)
	}
	// Either the function is variadic and supplied >= the minimum, or the
	// supplied count falls within the acceptable range.
	return ""
}

// CheckFunctionArgumentCount reflects over fn and validates the supplied
// argument count against it. See CheckArgumentCount for the result
// convention.
func CheckFunctionArgumentCount(fn any, inputArity int, infeed InfeedQueue) (string, error) {
	spec, err := ArgSpecOf(fn)
	if err != nil {
		return "", err
	}
	return CheckArgumentCount(spec, inputArity, infeed), nil
}
