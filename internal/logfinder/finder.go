// Package logfinder locates the game client's log file.
package logfinder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// EnvLogFile is the environment variable naming the log file.
const EnvLogFile = "POELOG_LOGFILE"

// ErrLogFileNotFound is returned when no candidate log file exists.
var ErrLogFileNotFound = errors.New("log file not found")

// relLogFile is the log path relative to an install directory.
var relLogFile = filepath.Join("logs", "Client.txt")

// DefaultLogFiles returns well-known log file locations in priority order.
func DefaultLogFiles() []string {
	var installs []string

	if pf := os.Getenv("ProgramFiles(x86)"); pf != "" {
		installs = append(installs,
			filepath.Join(pf, "Steam", "steamapps", "common", "Path of Exile"),
			filepath.Join(pf, "Grinding Gear Games", "Path of Exile"),
		)
	}
	if pf := os.Getenv("ProgramFiles"); pf != "" {
		installs = append(installs, filepath.Join(pf, "Grinding Gear Games", "Path of Exile"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		installs = append(installs,
			filepath.Join(home, ".steam", "steam", "steamapps", "common", "Path of Exile"),
			filepath.Join(home, ".local", "share", "Steam", "steamapps", "common", "Path of Exile"),
		)
	}

	files := make([]string, 0, len(installs))
	for _, dir := range installs {
		files = append(files, filepath.Join(dir, relLogFile))
	}
	return files
}

// Candidates returns the paths FindLogFile would try.
//
// Priority:
//  1. explicit (if non-empty)
//  2. POELOG_LOGFILE environment variable
//  3. DefaultLogFiles()
//
// An explicit path or the environment variable, when set, is the only
// candidate.
func Candidates(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	if env := os.Getenv(EnvLogFile); env != "" {
		return []string{env}
	}
	return DefaultLogFiles()
}

// FindLogFile returns the first existing candidate with symlinks resolved.
func FindLogFile(explicit string) (string, error) {
	candidates := Candidates(explicit)
	for _, c := range candidates {
		if resolved := resolveLogFile(c); resolved != "" {
			return resolved, nil
		}
	}

	switch {
	case explicit != "":
		return "", fmt.Errorf("%w: specified file does not exist or is not a regular file", ErrLogFileNotFound)
	case os.Getenv(EnvLogFile) != "":
		return "", fmt.Errorf("%w: %s points to a missing file", ErrLogFileNotFound, EnvLogFile)
	}
	return "", ErrLogFileNotFound
}

// WaitForLogFile polls until one of the candidates for explicit exists.
// The wait between attempts grows exponentially up to maxInterval.
func WaitForLogFile(ctx context.Context, explicit string, maxInterval time.Duration) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(100*time.Millisecond, maxInterval)
	b.MaxInterval = maxInterval
	b.Reset()

	for {
		path, err := FindLogFile(explicit)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, ErrLogFileNotFound) {
			return "", err
		}

		t := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}

// resolveLogFile resolves symlinks in path and returns the result if it is
// a regular file, or "" otherwise.
func resolveLogFile(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return ""
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return resolved
	}
	return abs
}
