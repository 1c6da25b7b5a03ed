// Package toolkit runs the external imaging tools the pipeline delegates to:
// ANTs for label resampling, Connectome Workbench for surface work and
// PETPVC for deconvolution-based partial-volume correction.
package toolkit

import (
	"context"
	"os"
	"os/exec"
)

// CommandExecutor runs one prepared command.
type CommandExecutor interface {
	// Run executes the command and returns the combined output (stdout+stderr).
	Run() ([]byte, error)
}

// CommandBuilder prepares commands. The abstraction lets tests observe tool
// invocations without the tools installed.
type CommandBuilder interface {
	// BuildCommand creates a CommandExecutor for name with args. env entries
	// are appended to the current process environment.
	BuildCommand(ctx context.Context, env []string, name string, args ...string) CommandExecutor
}

// RealCommandExecutor wraps exec.Cmd to implement CommandExecutor.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command and returns combined output.
func (r *RealCommandExecutor) Run() ([]byte, error) {
	return r.cmd.CombinedOutput()
}

// RealCommandBuilder implements CommandBuilder using exec.CommandContext.
// A non-empty Wrapper is prepended to every command, e.g.
// ["apptainer", "exec", "/images/petpipe.sif"].
type RealCommandBuilder struct {
	Wrapper []string
}

// NewRealCommandBuilder creates a RealCommandBuilder with the given wrapper.
func NewRealCommandBuilder(wrapper ...string) *RealCommandBuilder {
	return &RealCommandBuilder{Wrapper: wrapper}
}

// BuildCommand creates a CommandExecutor for the given command and arguments.
func (b *RealCommandBuilder) BuildCommand(ctx context.Context, env []string, name string, args ...string) CommandExecutor {
	argv := append(append([]string{}, b.Wrapper...), name)
	argv = append(argv, args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	return &RealCommandExecutor{cmd: cmd}
}

// MockCommandExecutor implements CommandExecutor for testing.
type MockCommandExecutor struct {
	// Output is the output to return from Run.
	Output []byte
	// Err is the error to return from Run.
	Err error
	// Effect runs before Run returns, e.g. to create the expected output file.
	Effect func() error
	// RunCalled indicates whether Run was called.
	RunCalled bool
}

// Run returns the configured output and error.
func (m *MockCommandExecutor) Run() ([]byte, error) {
	m.RunCalled = true
	if m.Effect != nil {
		if err := m.Effect(); err != nil {
			return m.Output, err
		}
	}
	return m.Output, m.Err
}

// MockBuiltCommand records details of a built command.
type MockBuiltCommand struct {
	Name string
	Args []string
	Env  []string
}

// MockCommandBuilder implements CommandBuilder for testing.
type MockCommandBuilder struct {
	// Commands records all commands that were built.
	Commands []MockBuiltCommand
	// ExecutorFactory creates executors based on the command. If nil, a
	// default MockCommandExecutor that succeeds is returned.
	ExecutorFactory func(name string, args []string) *MockCommandExecutor
}

// NewMockCommandBuilder creates a new MockCommandBuilder.
func NewMockCommandBuilder() *MockCommandBuilder {
	return &MockCommandBuilder{}
}

// BuildCommand creates a MockCommandExecutor and records the command details.
func (b *MockCommandBuilder) BuildCommand(_ context.Context, env []string, name string, args ...string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{Name: name, Args: args, Env: env})
	if b.ExecutorFactory != nil {
		return b.ExecutorFactory(name, args)
	}
	return &MockCommandExecutor{}
}
