package device

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

// fileTransport backs the file:// scheme (spec.md §4.A).
type fileTransport struct {
	f *os.File
}

func (t *fileTransport) Write(p []byte) (int, error) { return t.f.Write(p) }
func (t *fileTransport) Read(p []byte) (int, error)  { return t.f.Read(p) }
func (t *fileTransport) Close() error                { return t.f.Close() }

func (t *fileTransport) Status() (Reasons, error) {
	info, err := t.f.Stat()
	if err != nil {
		return ReasonNone, err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return ReasonNone, nil
	}
	return ReasonNone, nil
}

func (t *fileTransport) ID() (string, error) { return "", nil }

// sanitizeJobName replaces control, high-bit, and slash characters with
// '_', per spec.md §4.A's directory-output naming rule.
func sanitizeJobName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r >= 0x7f || r == '/' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "job"
	}
	return b.String()
}

func openFile(u *url.URL, jobName string, onError ErrorFunc) (*Handle, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	if path == "/dev/null" {
		path = os.DevNull
	}

	ext := u.Query().Get("ext")
	if ext == "" {
		ext = "prn"
	}

	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && info.IsDir():
		filename := fmt.Sprintf("%s.%s", sanitizeJobName(jobName), ext)
		resolved := filepath.Join(path, filename)
		f, err := os.OpenFile(resolved, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, wrapOpenError("file", u.String(), err)
		}
		return newHandle(u.String(), &fileTransport{f: f}, onError), nil

	case statErr == nil && info.Mode()&os.ModeCharDevice != 0:
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return nil, wrapOpenError("file", u.String(), err)
		}
		return newHandle(u.String(), &fileTransport{f: f}, onError), nil

	case statErr == nil && info.Mode().IsRegular():
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return nil, wrapOpenError("file", u.String(), err)
		}
		return newHandle(u.String(), &fileTransport{f: f}, onError), nil

	case os.IsNotExist(statErr):
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, wrapOpenError("file", u.String(), err)
		}
		return newHandle(u.String(), &fileTransport{f: f}, onError), nil

	default:
		// Neither dir, char device, nor regular file: a user error
		// (spec.md §9 open-question resolution).
		return nil, fmt.Errorf("%w: %s is neither a directory, character device, nor regular file", ippcore.ErrInvalidArgument, path)
	}
}
