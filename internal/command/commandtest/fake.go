// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"github.com/kurihiro0119/pages-deploy/internal/command"
)

// Call records one invocation.
type Call struct {
	Name string
	Args []string
	Opts command.Options
}

// Line returns the call as "name arg1 arg2".
func (c Call) Line() string {
	return command.Line(c.Name, c.Args)
}

// Response is what the fake returns for a matching command line.
type Response struct {
	Result command.Result
	Err    error
	// Hook runs before the response is returned, e.g. to create build output.
	Hook func()
}

// Runner is a fake command.Runner. Responses are keyed by command line prefix;
// the longest matching prefix wins. Unmatched commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
}

// New creates an empty fake runner.
func New() *Runner {
	return &Runner{responses: make(map[string]Response)}
}

// On registers a response for commands starting with line.
func (r *Runner) On(line string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[line] = resp
	return r
}

// OnOutput registers a successful response with the given stdout.
func (r *Runner) OnOutput(line, stdout string) *Runner {
	return r.On(line, Response{Result: command.Result{Stdout: stdout}})
}

// OnExit registers a response with the given exit code and stderr.
func (r *Runner) OnExit(line string, code int, stderr string) *Runner {
	return r.On(line, Response{Result: command.Result{ExitCode: code, Stderr: stderr}})
}

// Run implements command.Runner.
func (r *Runner) Run(_ context.Context, name string, args []string, opts command.Options) (command.Result, error) {
	r.mu.Lock()
	call := Call{Name: name, Args: append([]string(nil), args...), Opts: opts}
	r.calls = append(r.calls, call)

	line := call.Line()
	var (
		best  string
		resp  Response
		found bool
	)
	for prefix, candidate := range r.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, resp, found = prefix, candidate, true
		}
	}
	r.mu.Unlock()

	if !found {
		return command.Result{}, nil
	}
	if resp.Hook != nil {
		resp.Hook()
	}
	return resp.Result, resp.Err
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the recorded calls as command lines.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line()
	}
	return lines
}

// Ran reports whether any recorded command line starts with prefix.
func (r *Runner) Ran(prefix string) bool {
	for _, line := range r.Lines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
