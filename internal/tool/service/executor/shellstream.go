package executor

import "context"

// StreamingExec runs a shell command line and hands stdout and stderr to
// separate callbacks. It returns the exit code of the command. Grep and find
// are written against this so every backend can serve them.
type StreamingExec func(ctx context.Context, cmdline string, onStdout, onStderr func([]byte)) (int, error)

// ShellStream returns a StreamingExec that runs each command line through
// bash on the host. wrap, when set, turns the bash argv into the argv that is
// actually started (used to put the command inside an OS sandbox).
func (f *OSCommandExecutor) ShellStream(dir string, env []string, wrap func([]string) []string) StreamingExec {
	return func(ctx context.Context, cmdline string, onStdout, onStderr func([]byte)) (int, error) {
		argv := []string{"bash", "-c", cmdline}
		if wrap != nil {
			argv = wrap(argv)
		}
		return f.Stream(ctx, argv, dir, env, StreamOptions{Stdout: onStdout, Stderr: onStderr})
	}
}
