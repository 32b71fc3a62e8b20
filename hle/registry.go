package hle

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/ppcemu/cpu"
	"github.com/sarchlab/ppcemu/mem"
)

// ErrUnknownFunction is returned for a call ID with no registered function.
var ErrUnknownFunction = errors.New("unknown host function")

// Func is a host function callable from guest code. It reads its
// arguments from a and writes its result with the Return helpers.
type Func func(a *Args) error

// Function is a registered host function.
type Function struct {
	Name string
	ID   uint32

	// Member functions take their receiver in GPR3.
	Member bool

	// Trace is cleared for functions too noisy to log.
	Trace bool

	fn Func
}

// Registry maps call IDs to host functions. Functions are registered
// before any core runs; after that the registry is only read and can be
// shared by every core.
type Registry struct {
	space *mem.Space
	log   logr.Logger
	trace bool

	functions []*Function
	byName    map[string]*Function
}

// Option is a functional option for configuring the Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// WithTrace logs every call and its result.
func WithTrace(on bool) Option {
	return func(r *Registry) {
		r.trace = on
	}
}

// NewRegistry creates an empty registry whose functions read guest memory
// from space.
func NewRegistry(space *mem.Space, opts ...Option) *Registry {
	r := &Registry{
		space:  space,
		log:    logr.Discard(),
		byName: make(map[string]*Function),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Registry) add(name string, member bool, fn Func) *Function {
	if _, ok := r.byName[name]; ok {
		panic(fmt.Sprintf("hle: function %q registered twice", name))
	}

	f := &Function{
		Name:   name,
		ID:     uint32(len(r.functions)),
		Member: member,
		Trace:  true,
		fn:     fn,
	}
	r.functions = append(r.functions, f)
	r.byName[name] = f
	return f
}

// Register adds a plain function and returns it with its call ID.
func (r *Registry) Register(name string, fn Func) *Function {
	return r.add(name, false, fn)
}

// RegisterMember adds a function called with a receiver in GPR3.
func (r *Registry) RegisterMember(name string, fn Func) *Function {
	return r.add(name, true, fn)
}

// Lookup returns the function with call ID id.
func (r *Registry) Lookup(id uint32) (*Function, bool) {
	if id >= uint32(len(r.functions)) {
		return nil, false
	}
	return r.functions[id], true
}

// Find returns the function registered as name.
func (r *Registry) Find(name string) (*Function, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Functions returns every registered function in call ID order.
func (r *Registry) Functions() []*Function {
	return append([]*Function(nil), r.functions...)
}

// Call runs function id on core.
func (r *Registry) Call(core *cpu.Core, id uint32) error {
	f, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownFunction, id)
	}

	var args *Args
	if f.Member {
		args = NewMemberArgs(core, r.space)
	} else {
		args = NewArgs(core, r.space)
	}

	trace := r.trace && f.Trace
	if trace {
		r.log.Info("hle call", "core", core.ID, "function", f.Name,
			"lr", fmt.Sprintf("0x%08X", core.LR),
			"r3", fmt.Sprintf("0x%08X", core.GPR[3]),
			"r4", fmt.Sprintf("0x%08X", core.GPR[4]),
			"r5", fmt.Sprintf("0x%08X", core.GPR[5]),
			"f1", core.FPR[1].Value())
	}

	if err := f.fn(args); err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}

	if trace {
		r.log.Info("hle return", "core", core.ID, "function", f.Name,
			"r3", fmt.Sprintf("0x%08X", core.GPR[3]),
			"f1", core.FPR[1].Value())
	}
	return nil
}

// Handle services sc, taking the call ID from GPR0.
func (r *Registry) Handle(core *cpu.Core) error {
	return r.Call(core, core.GPR[0])
}
