package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvBackend overrides the default backend URL.
const EnvBackend = "AWSLBC_BACKEND"

// Backend stores stack state.
type Backend interface {
	// Load returns the stored state, or an empty state if none exists.
	Load(ctx context.Context, stack string) (*State, error)
	// Save writes the state.
	Save(ctx context.Context, st *State) error
	// Remove deletes the stored state. Missing state is not an error.
	Remove(ctx context.Context, stack string) error
	// String describes the backend location.
	String() string
}

// DefaultURL returns the backend URL used when none is configured:
// $AWSLBC_BACKEND, then ~/.awslbc/state.
func DefaultURL() string {
	if v := os.Getenv(EnvBackend); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "file://.awslbc/state"
	}
	return "file://" + filepath.Join(home, ".awslbc", "state")
}

// Open returns the backend for a URL. Supported forms are
// file://<dir>, s3://<bucket>[/<prefix>] and a bare directory path.
func Open(ctx context.Context, rawURL, region string) (Backend, error) {
	if rawURL == "" {
		rawURL = DefaultURL()
	}

	if !strings.Contains(rawURL, "://") {
		return NewFileBackend(rawURL), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "file":
		return NewFileBackend(u.Host + u.Path), nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("invalid backend URL %q: bucket is required", rawURL)
		}
		client, err := newS3Client(ctx, region)
		if err != nil {
			return nil, err
		}
		return NewS3Backend(client, u.Host, strings.Trim(u.Path, "/")), nil
	default:
		return nil, fmt.Errorf("unsupported backend scheme %q (want file or s3)", u.Scheme)
	}
}

func encode(st *State) ([]byte, error) {
	st.Version = CurrentVersion
	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return append(data, '\n'), nil
}

func decode(stack string, data []byte) (*State, error) {
	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to decode state for stack %s: %w", stack, err)
	}
	if st.Version > CurrentVersion {
		return nil, fmt.Errorf("state for stack %s has version %d, newer than supported version %d", stack, st.Version, CurrentVersion)
	}
	if st.Stack == "" {
		st.Stack = stack
	}
	return st, nil
}

// FileBackend stores one JSON file per stack in a directory.
type FileBackend struct {
	Dir string
}

// NewFileBackend creates a file backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{Dir: dir}
}

func (b *FileBackend) path(stack string) string {
	return filepath.Join(b.Dir, stack+".json")
}

func (b *FileBackend) String() string {
	return "file://" + b.Dir
}

// Load implements Backend.
func (b *FileBackend) Load(_ context.Context, stack string) (*State, error) {
	if err := ValidateStackName(stack); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(stack))
	if errors.Is(err, os.ErrNotExist) {
		return New(stack), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return decode(stack, data)
}

// Save implements Backend. The file is replaced atomically.
func (b *FileBackend) Save(_ context.Context, st *State) error {
	if err := ValidateStackName(st.Stack); err != nil {
		return err
	}
	data, err := encode(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(b.Dir, st.Stack+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path(st.Stack)); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Remove implements Backend.
func (b *FileBackend) Remove(_ context.Context, stack string) error {
	if err := ValidateStackName(stack); err != nil {
		return err
	}
	if err := os.Remove(b.path(stack)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

var (
	_ Backend = (*FileBackend)(nil)
	_ Backend = (*S3Backend)(nil)
)

// keyFor returns the object key for a stack under prefix.
func keyFor(prefix, stack string) string {
	if prefix == "" {
		return stack + ".json"
	}
	return prefix + "/" + stack + ".json"
}
