// Package mediatest provides a scripted stand-in for ffmpeg and ffprobe.
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Call is one recorded command invocation
type Call struct {
	Name string
	Args []string
}

// Arg returns the value following flag, or "" when absent
func (c Call) Arg(flag string) string {
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// Inputs returns every value passed with -i
func (c Call) Inputs() []string {
	var inputs []string
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == "-i" {
			inputs = append(inputs, c.Args[i+1])
		}
	}
	return inputs
}

// Has reports whether arg appears verbatim
func (c Call) Has(arg string) bool {
	for _, a := range c.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// Output is the last argument, where ffmpeg writes
func (c Call) Output() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// FakeRunner answers ffprobe with scripted durations and makes ffmpeg
// "succeed" by writing a small file to the output path.
type FakeRunner struct {
	mu sync.Mutex

	// Durations by input path; DefaultDuration is used for anything else that exists
	Durations       map[string]float64
	DefaultDuration float64
	// RawProbe overrides the ffprobe stdout for a path
	RawProbe map[string]string

	failures map[string]error
	calls    []Call
}

// NewFakeRunner creates a runner where every existing file lasts defaultDuration seconds
func NewFakeRunner(defaultDuration float64) *FakeRunner {
	return &FakeRunner{
		Durations:       make(map[string]float64),
		DefaultDuration: defaultDuration,
		RawProbe:        make(map[string]string),
		failures:        make(map[string]error),
	}
}

// FailWhenOutputContains makes ffmpeg fail for outputs whose path contains substr.
// A partial file is still written, like a real ffmpeg crash would leave.
func (r *FakeRunner) FailWhenOutputContains(substr string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[substr] = err
}

// SetDuration scripts the probe answer for path
func (r *FakeRunner) SetDuration(path string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Durations[path] = seconds
}

// Run implements media.Runner
func (r *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	call := Call{Name: name, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if strings.Contains(name, "ffprobe") {
		return r.probe(call)
	}
	return nil, r.encode(call)
}

func (r *FakeRunner) probe(call Call) ([]byte, error) {
	path := call.Arg("-i")

	r.mu.Lock()
	defer r.mu.Unlock()

	if raw, ok := r.RawProbe[path]; ok {
		return []byte(raw), nil
	}
	if d, ok := r.Durations[path]; ok {
		return []byte(fmt.Sprintf("%f\n", d)), nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ffprobe: %s: no such file", path)
	}
	return []byte(fmt.Sprintf("%f\n", r.DefaultDuration)), nil
}

func (r *FakeRunner) encode(call Call) error {
	out := call.Output()
	if out == "" {
		return errors.New("ffmpeg: no output path")
	}

	r.mu.Lock()
	var failure error
	for substr, err := range r.failures {
		if strings.Contains(out, substr) {
			failure = err
			break
		}
	}
	r.mu.Unlock()

	if err := os.WriteFile(out, []byte("fake media"), 0644); err != nil {
		return err
	}
	return failure
}

// Calls returns every recorded invocation
func (r *FakeRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// FFmpegCalls returns the recorded ffmpeg invocations only
func (r *FakeRunner) FFmpegCalls() []Call {
	var calls []Call
	for _, c := range r.Calls() {
		if !strings.Contains(c.Name, "ffprobe") {
			calls = append(calls, c)
		}
	}
	return calls
}

// LastFFmpegCall returns the most recent ffmpeg invocation
func (r *FakeRunner) LastFFmpegCall() (Call, bool) {
	calls := r.FFmpegCalls()
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}
