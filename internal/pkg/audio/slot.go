package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/talkback/internal/pkg/utils"
)

// Options for the local audio store
type Options struct {
	Dir string
	// Name is the fixed file name, used as a prefix in per run mode
	Name   string
	PerRun bool
	// Expire is the max age of per run files, zero disables expiration.
	// The single slot file never expires.
	Expire time.Duration
}

// Slot keeps synthesized audio files on local disk for delivery
type Slot struct {
	opts Options
	base string
	ext  string
	lock sync.Mutex
	now  func() time.Time
}

// NewSlot creates local audio store, makes the dir if needed
func NewSlot(opts Options) (*Slot, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("no dir")
	}
	if !utils.IsPlainName(opts.Name) || filepath.Ext(opts.Name) == "" {
		return nil, fmt.Errorf("wrong audio name '%s'", opts.Name)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("can't create dir '%s': %w", opts.Dir, err)
	}
	ext := filepath.Ext(opts.Name)
	res := &Slot{opts: opts, ext: ext, base: strings.TrimSuffix(opts.Name, ext), now: time.Now}
	goapp.Log.Info().Str("dir", opts.Dir).Str("name", opts.Name).Bool("perRun", opts.PerRun).
		Dur("expire", opts.Expire).Msg("local audio")
	return res, nil
}

// DefaultName returns the fixed file name
func (s *Slot) DefaultName() string {
	return s.opts.Name
}

// PerRun returns true if each run gets own file
func (s *Slot) PerRun() bool {
	return s.opts.PerRun
}

// Write saves audio and returns the file name.
// In single slot mode all previous audio files are removed first.
func (s *Slot) Write(runID string, data []byte) (string, error) {
	if s.opts.PerRun {
		name := s.runName(runID)
		if !utils.IsPlainName(name) {
			return "", fmt.Errorf("wrong run ID '%s'", runID)
		}
		if err := utils.WriteFile(filepath.Join(s.opts.Dir, name), data); err != nil {
			return "", fmt.Errorf("can't write '%s': %w", name, err)
		}
		return name, nil
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.clear(); err != nil {
		return "", err
	}
	if err := utils.WriteFile(filepath.Join(s.opts.Dir, s.opts.Name), data); err != nil {
		return "", fmt.Errorf("can't write '%s': %w", s.opts.Name, err)
	}
	return s.opts.Name, nil
}

// Path returns full path of the file, fails on names with path elements
func (s *Slot) Path(name string) (string, error) {
	if !utils.IsPlainName(name) {
		return "", fmt.Errorf("wrong name '%s'", name)
	}
	return filepath.Join(s.opts.Dir, name), nil
}

// Delete removes the file, returns false if it did not exist
func (s *Slot) Delete(name string) (bool, error) {
	p, err := s.Path(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("can't delete '%s': %w", name, err)
	}
	goapp.Log.Info().Str("name", name).Msg("deleted")
	return true, nil
}

// GetExpired returns names of per run audio files older than Expire
func (s *Slot) GetExpired(ctx context.Context) ([]string, error) {
	if !s.opts.PerRun || s.opts.Expire <= 0 {
		return nil, nil
	}
	files, err := s.list()
	if err != nil {
		return nil, err
	}
	limit := s.now().Add(-s.opts.Expire)
	var res []string
	for _, f := range files {
		info, err := f.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("can't stat '%s': %w", f.Name(), err)
		}
		if info.ModTime().Before(limit) {
			res = append(res, f.Name())
		}
	}
	return res, nil
}

// Clean removes expired file
func (s *Slot) Clean(ctx context.Context, name string) error {
	_, err := s.Delete(name)
	return err
}

func (s *Slot) runName(runID string) string {
	return fmt.Sprintf("%s-%s%s", s.base, runID, s.ext)
}

func (s *Slot) clear() error {
	files, err := s.list()
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := s.Delete(f.Name()); err != nil {
			return err
		}
	}
	return nil
}

// list returns files owned by the slot: the fixed name and per run names
func (s *Slot) list() ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("can't read dir '%s': %w", s.opts.Dir, err)
	}
	var res []fs.DirEntry
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, s.ext) {
			continue
		}
		if n == s.opts.Name || strings.HasPrefix(n, s.base+"-") {
			res = append(res, e)
		}
	}
	return res, nil
}
