// Package script evaluates placeholder expressions in a pool of sandboxed
// goja VMs.
package script

import (
	"context"
	"errors"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrTimeout is returned when a script exceeds the execution time limit.
var ErrTimeout = errors.New("script: execution timed out")

// ErrPanic is returned when the runtime panics while evaluating a script.
var ErrPanic = errors.New("script: runtime panic")

// Env is the set of globals visible to one evaluation. They are removed again
// before the VM returns to the pool.
type Env map[string]any

// VMPool is a thread-safe pool of pre-initialised goja runtimes.
type VMPool struct {
	pool    chan *goja.Runtime
	timeout time.Duration
	logger  *zap.Logger
}

// NewVMPool creates a VMPool with the given concurrency size and per-script timeout.
func NewVMPool(size int, timeout time.Duration, logger *zap.Logger) *VMPool {
	if size <= 0 {
		size = 4
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	p := &VMPool{
		pool:    make(chan *goja.Runtime, size),
		timeout: timeout,
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		p.pool <- newSafeVM()
	}
	return p
}

// Run executes src inside a pooled VM with env bound as globals and returns
// the exported value of the last expression.
func (p *VMPool) Run(ctx context.Context, src string, env Env) (any, error) {
	select {
	case vm := <-p.pool:
		result, err := p.runVM(vm, src, env)
		if errors.Is(err, ErrTimeout) {
			// An interrupted runtime is not reused.
			p.pool <- newSafeVM()
		} else {
			vm.ClearInterrupt()
			p.pool <- vm
		}
		return result, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *VMPool) runVM(vm *goja.Runtime, src string, env Env) (result any, err error) {
	for name, v := range env {
		if err := vm.Set(name, v); err != nil {
			return nil, err
		}
	}
	defer func() {
		for name := range env {
			_ = vm.GlobalObject().Delete(name)
		}
	}()

	timer := time.AfterFunc(p.timeout, func() { vm.Interrupt(ErrTimeout) })
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("script runtime panic", zap.Any("recover", r))
			result, err = nil, ErrPanic
		}
	}()

	v, runErr := vm.RunString(src)
	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			return nil, ErrTimeout
		}
		var ex *goja.Exception
		if errors.As(runErr, &ex) {
			return nil, errors.New(ex.Error())
		}
		return nil, runErr
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// newSafeVM creates a goja Runtime with dangerous globals removed.
func newSafeVM() *goja.Runtime {
	vm := goja.New()
	for _, name := range []string{"require", "process", "fetch", "XMLHttpRequest", "eval", "Function"} {
		_ = vm.Set(name, goja.Undefined())
	}
	return vm
}
