package pass

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
)

const binary = "pass"

var ErrUnavailable = errors.New("pass command unavailable")

// invocation is one run of the pass binary.
type invocation struct {
	args  []string
	stdin string
}

type output struct {
	stdout string
	stderr string
}

type runner func(ctx context.Context, inv invocation) (output, error)

// Store keeps secrets in the user's password-store. Only the first line of an
// entry is the secret, as pass itself treats it.
type Store struct {
	run      runner
	lookPath func(string) (string, error)
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{run: execPass, lookPath: exec.LookPath}
}

// Available reports whether the pass binary is on PATH.
func (s *Store) Available() bool {
	_, err := s.lookPath(binary)
	return err == nil
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("pass put %q: value must be a single line", key)
	}

	out, err := s.run(ctx, invocation{args: []string{"insert", "--multiline", "--force", key}, stdin: value + "\n"})
	if err != nil {
		return describe("put", key, err, out.stderr)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := s.run(ctx, invocation{args: []string{"show", key}})
	if err != nil {
		if missingEntry(out.stderr) {
			return "", fmt.Errorf("pass get %q: %w", key, domain.ErrSecretNotFound)
		}
		return "", describe("get", key, err, out.stderr)
	}

	line, _, _ := bufio.NewReader(strings.NewReader(out.stdout)).ReadLine()
	return strings.TrimRight(string(line), "\r"), nil
}

// Delete treats a missing entry as already deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := s.run(ctx, invocation{args: []string{"rm", "--force", key}})
	if err != nil && !missingEntry(out.stderr) {
		return describe("delete", key, err, out.stderr)
	}
	return nil
}

func execPass(ctx context.Context, inv invocation) (output, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return output{}, ErrUnavailable
		}
		return output{}, fmt.Errorf("locate pass command: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, inv.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if inv.stdin != "" {
		cmd.Stdin = strings.NewReader(inv.stdin)
	}

	err = cmd.Run()
	return output{stdout: stdout.String(), stderr: strings.TrimSpace(stderr.String())}, err
}

// pass prints "Error: <key> is not in the password store." for unknown entries.
func missingEntry(stderr string) bool {
	return strings.Contains(stderr, "is not in the password store")
}

func describe(op string, key string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("pass %s %q: %w", op, key, err)
	}
	return fmt.Errorf("pass %s %q: %w: %s", op, key, err, stderr)
}
