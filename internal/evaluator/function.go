package evaluator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Func evaluates a point in-process and returns its outputs by name.
type Func func(ctx context.Context, p models.Point) (map[string]float64, error)

// scalar builtins read x0, x1, ... and return a single value for the first objective.
type scalar func(x []float64) float64

var (
	builtinsMu sync.RWMutex
	builtins   = map[string]scalar{
		"sphere":     sphere,
		"branin":     branin,
		"rosenbrock": rosenbrock,
		"dummy":      dummy,
	}
	custom = map[string]Func{}
)

// Register adds a named function that can be selected by evaluator.function.
// It panics on a duplicate name, like http.Handle.
func Register(name string, fn Func) {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	if _, ok := builtins[name]; ok {
		panic("evaluator: function already registered: " + name)
	}
	if _, ok := custom[name]; ok {
		panic("evaluator: function already registered: " + name)
	}
	custom[name] = fn
}

// FunctionNames lists every selectable function.
func FunctionNames() []string {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()
	return functionNamesLocked()
}

func functionNamesLocked() []string {
	names := make([]string, 0, len(builtins)+len(custom))
	for name := range builtins {
		names = append(names, name)
	}
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupFunction resolves a function name against space. Scalar builtins
// assign their value to the first objective.
func LookupFunction(name string, space *models.Space) (Func, error) {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()
	if fn, ok := custom[name]; ok {
		return fn, nil
	}
	f, ok := builtins[name]
	if !ok {
		return nil, &UnknownFunctionError{Name: name, Available: functionNamesLocked()}
	}
	names := make([]string, len(space.Varying))
	for i, vp := range space.Varying {
		names[i] = vp.Name
	}
	objective := space.Objectives[0].Name
	return func(_ context.Context, p models.Point) (map[string]float64, error) {
		x := make([]float64, len(names))
		for i, n := range names {
			x[i] = p[n]
		}
		return map[string]float64{objective: f(x)}, nil
	}, nil
}

// FunctionRunner evaluates trials with an in-process function.
type FunctionRunner struct {
	name string
	fn   Func
}

// NewFunctionRunner wraps fn as a Runner.
func NewFunctionRunner(name string, fn Func) *FunctionRunner {
	return &FunctionRunner{name: name, fn: fn}
}

func (r *FunctionRunner) Name() string { return "function:" + r.name }

// Run calls the function on its own goroutine so a function that ignores ctx
// still lets the trial time out.
func (r *FunctionRunner) Run(ctx context.Context, job Job) (map[string]float64, error) {
	type result struct {
		outputs map[string]float64
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result{err: fmt.Errorf("function panicked: %v", rec)}
			}
		}()
		out, err := r.fn(ctx, job.Trial.Parameters.Clone())
		ch <- result{outputs: out, err: err}
	}()

	select {
	case res := <-ch:
		return res.outputs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// branin uses the first two inputs; its global minimum is about 0.397887.
func branin(x []float64) float64 {
	x0, x1 := at(x, 0), at(x, 1)
	const (
		a = 1.0
		r = 6.0
		s = 10.0
	)
	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)
	return a*math.Pow(x1-b*x0*x0+c*x0-r, 2) + s*(1-t)*math.Cos(x0) + s
}

func rosenbrock(x []float64) float64 {
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		sum += 100*math.Pow(x[i+1]-x[i]*x[i], 2) + math.Pow(1-x[i], 2)
	}
	return sum
}

func dummy(x []float64) float64 {
	x0, x1 := at(x, 0), at(x, 1)
	return -(x0 + 10*math.Cos(x0)) * (x1 + 5*math.Cos(x1))
}

func at(x []float64, i int) float64 {
	if i < len(x) {
		return x[i]
	}
	return 0
}
