// Package store keeps serialized model artifacts on a filesystem, one
// directory per version identifier with a fixed artifact filename inside:
//
//	<root>/<version>/<name>
//
// A store can also hold a single unversioned artifact at <root>/<name>.
// Artifacts are published by writing a temporary file next to the
// destination and renaming it into place, so readers never observe a
// partially written artifact.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"churn-serving/internal/common"
	"churn-serving/internal/model"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog/log"
)

// ErrInvalidVersion is returned for version identifiers that cannot be used
// as a single directory name.
var ErrInvalidVersion = errors.New("invalid model version")

// Store maps version identifiers to artifact locations on a billy filesystem.
type Store struct {
	fs   billy.Filesystem
	root string
	name string
}

// New creates a store rooted at root on the given filesystem.
func New(filesystem billy.Filesystem, root, name string) *Store {
	return &Store{
		fs:   filesystem,
		root: filepath.Clean(root),
		name: name,
	}
}

// NewOS creates a store on the host filesystem. Relative roots are resolved
// against the working directory.
func NewOS(root, name string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root %s: %w", root, err)
	}
	return New(osfs.New(string(filepath.Separator)), abs, name), nil
}

// Root returns the directory the store is rooted at.
func (s *Store) Root() string {
	return s.root
}

// LocationFor returns where the artifact for version lives. It does no I/O.
func (s *Store) LocationFor(version string) string {
	return s.fs.Join(s.root, version, s.name)
}

// Unversioned returns the location of the single unversioned artifact.
func (s *Store) Unversioned() string {
	return s.fs.Join(s.root, s.name)
}

// Exists reports whether a regular file is present at location.
func (s *Store) Exists(location string) (bool, error) {
	info, err := s.fs.Stat(location)
	switch {
	case err == nil:
		return info.Mode().IsRegular(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", location, err)
	}
}

// Write publishes artifact at location, creating parent directories as
// needed and replacing any artifact already there.
func (s *Store) Write(location string, artifact *model.Artifact) error {
	dir := filepath.Dir(location)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory %s: %w", dir, err)
	}

	tmp, err := s.fs.TempFile(dir, ".artifact-")
	if err != nil {
		return fmt.Errorf("create temp artifact in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if err := artifact.Encode(tmp); err != nil {
		tmp.Close()
		s.removeTemp(tmpName)
		return fmt.Errorf("write artifact %s: %w", location, err)
	}
	if err := tmp.Close(); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("close temp artifact %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, location); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("publish artifact %s: %w", location, err)
	}

	return nil
}

// Read decodes the artifact at location. Callers check Exists first: a
// missing file yields the filesystem error unchanged.
func (s *Store) Read(location string) (*model.Artifact, error) {
	f, err := s.fs.Open(location)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	artifact, err := model.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return artifact, nil
}

// Versions lists the version directories that hold an artifact, sorted.
func (s *Store) Versions() ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.root, err)
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || ValidateVersion(e.Name()) != nil {
			continue
		}
		ok, err := s.Exists(s.LocationFor(e.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			versions = append(versions, e.Name())
		}
	}

	sort.Strings(versions)
	return versions, nil
}

func (s *Store) removeTemp(name string) {
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", name).Msg("failed to remove temp artifact")
	}
}

// ValidateVersion checks that version is usable as one path element.
func ValidateVersion(version string) error {
	switch {
	case version == "":
		return fmt.Errorf("%w: empty", ErrInvalidVersion)
	case len(version) > common.MaxModelVersion:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidVersion, common.MaxModelVersion)
	case version == "." || version == "..":
		return fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	case strings.ContainsAny(version, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidVersion, version)
	case strings.HasPrefix(version, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidVersion, version)
	}
	return nil
}
