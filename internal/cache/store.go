// Package cache implements the content-addressed on-disk store: verified
// HDD and model blobs keyed by SHA-256, with a small JSON manifest for
// (board, app) -> latest-SHA resolution and symlink-to-latest semantics.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cognipilot/dendrite/internal/logging"
)

// HDDHandle identifies one verified HDD document on disk.
type HDDHandle struct {
	Sha  string
	Path string
}

type hddEntry struct {
	Board string `json:"board"`
	App   string `json:"app"`
	Sha   string `json:"sha"`
	Path  string `json:"path"`
}

type modelEntry struct {
	Sha  string `json:"sha"`
	Path string `json:"path"`
	Name string `json:"name"`
}

type manifest struct {
	HDDs   []hddEntry   `json:"hdds"`
	Models []modelEntry `json:"models"`
}

// Store is the content-addressed cache rooted at a directory. It
// synchronizes its manifest with an exclusive lock; filesystem work that
// doesn't require lock protection (hashing, staging temp files) happens
// outside the lock.
type Store struct {
	root   string
	logger *logging.Logger

	mu sync.Mutex
	m  manifest
}

// NewStore opens (or initializes) a cache rooted at root, loading its
// manifest or rebuilding one from disk if the manifest is missing or
// corrupt.
func NewStore(root string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(filepath.Join(root, "models"), 0o755); err != nil {
		return nil, fmt.Errorf("cache: create root %s: %w", root, err)
	}

	s := &Store{root: root, logger: logger.WithComponent("cache")}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) manifestPath() string { return filepath.Join(s.root, "manifest") }

func (s *Store) load() error {
	data, err := os.ReadFile(s.manifestPath())
	if os.IsNotExist(err) {
		s.m = manifest{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn("manifest corrupt, rescanning cache directory", "error", err)
		bak := s.manifestPath() + ".bak"
		if renameErr := os.Rename(s.manifestPath(), bak); renameErr != nil {
			s.logger.Warn("failed to preserve corrupt manifest", "error", renameErr)
		}
		rescanned, scanErr := rescan(s.root)
		if scanErr != nil {
			return fmt.Errorf("%w: %v (rescan also failed: %v)", ErrManifestCorrupt, err, scanErr)
		}
		s.m = rescanned
		return s.persistLocked()
	}

	s.m = m
	return nil
}

// rescan walks the cache directory tree and reconstructs a manifest from
// the files actually present, used when the on-disk manifest cannot be
// read.
func rescan(root string) (manifest, error) {
	var m manifest

	modelsDir := filepath.Join(root, "models")
	if entries, err := os.ReadDir(modelsDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			sha, name, ok := splitShaPrefixed(e.Name())
			if !ok {
				continue
			}
			m.Models = append(m.Models, modelEntry{Sha: sha, Path: filepath.Join(modelsDir, e.Name()), Name: name})
		}
	}

	boards, err := os.ReadDir(root)
	if err != nil {
		return m, fmt.Errorf("cache: rescan root: %w", err)
	}
	for _, board := range boards {
		if !board.IsDir() || board.Name() == "models" {
			continue
		}
		boardDir := filepath.Join(root, board.Name())
		apps, err := os.ReadDir(boardDir)
		if err != nil {
			continue
		}
		for _, app := range apps {
			if !app.IsDir() {
				continue
			}
			appDir := filepath.Join(boardDir, app.Name())
			files, err := os.ReadDir(appDir)
			if err != nil {
				continue
			}
			for _, f := range files {
				if f.IsDir() || f.Name() == app.Name()+".hdd" {
					continue
				}
				suffix := "-" + app.Name() + ".hdd"
				if !strings.HasSuffix(f.Name(), suffix) {
					continue
				}
				sha := strings.TrimSuffix(f.Name(), suffix)
				m.HDDs = append(m.HDDs, hddEntry{
					Board: board.Name(),
					App:   app.Name(),
					Sha:   sha,
					Path:  filepath.Join(appDir, f.Name()),
				})
			}
		}
	}
	return m, nil
}

// splitShaPrefixed parses a "<sha>-<name>" filename into its parts.
func splitShaPrefixed(filename string) (sha, name string, ok bool) {
	idx := strings.Index(filename, "-")
	if idx <= 0 {
		return "", "", false
	}
	return filename[:idx], filename[idx+1:], true
}

// persistLocked rewrites the manifest atomically. Caller must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal manifest: %w", err)
	}
	tmp := s.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write manifest temp file: %w", err)
	}
	if err := os.Rename(tmp, s.manifestPath()); err != nil {
		return fmt.Errorf("cache: rename manifest into place: %w", err)
	}
	return nil
}

// Verify reports whether data hashes to sha (lowercase hex SHA-256).
func Verify(sha string, data []byte) bool {
	return sumHex(data) == strings.ToLower(sha)
}

func sumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) appDir(board, app string) string {
	return filepath.Join(s.root, board, app)
}

func (s *Store) hddFilePath(board, app, sha string) string {
	return filepath.Join(s.appDir(board, app), sha+"-"+app+".hdd")
}

func (s *Store) hddSymlinkPath(board, app string) string {
	return filepath.Join(s.appDir(board, app), app+".hdd")
}

// GetHDD resolves (board, app[, expectedSha]) to a cache handle. With
// expectedSha set, it only checks for that exact file's existence —
// never touching the filesystem beyond a stat. Without it, the
// symlinked latest entry is used.
func (s *Store) GetHDD(board, app, expectedSha string) (*HDDHandle, bool) {
	if expectedSha != "" {
		path := s.hddFilePath(board, app, expectedSha)
		if _, err := os.Stat(path); err != nil {
			return nil, false
		}
		return &HDDHandle{Sha: expectedSha, Path: path}, true
	}

	link := s.hddSymlinkPath(board, app)
	target, err := os.Readlink(link)
	if err != nil {
		return nil, false
	}
	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(link), target)
	}
	if _, err := os.Stat(resolved); err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.m.HDDs {
		if e.Board == board && e.App == app && e.Path == resolved {
			return &HDDHandle{Sha: e.Sha, Path: resolved}, true
		}
	}
	sha := strings.TrimSuffix(filepath.Base(resolved), "-"+app+".hdd")
	return &HDDHandle{Sha: sha, Path: resolved}, true
}

// PutHDD stores data as the HDD for (board, app), computing and
// verifying its SHA-256, writing it atomically, and repointing the
// "latest" symlink at it. A put whose target file already exists and
// verifies succeeds without rewriting the file (but still repoints the
// symlink and updates the manifest, since this call represents the most
// recently confirmed binding).
func (s *Store) PutHDD(board, app string, data []byte) (string, error) {
	sha := sumHex(data)
	dir := s.appDir(board, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create %s: %w", dir, err)
	}

	finalPath := s.hddFilePath(board, app, sha)
	if existing, err := os.ReadFile(finalPath); err == nil {
		if !Verify(sha, existing) {
			if err := writeAtomic(finalPath, data); err != nil {
				return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
		}
	} else if err := writeAtomic(finalPath, data); err != nil {
		return "", err
	}

	if err := repointSymlink(s.hddSymlinkPath(board, app), filepath.Base(finalPath)); err != nil {
		return "", fmt.Errorf("cache: repoint symlink: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordHDDLocked(board, app, sha, finalPath)
	if err := s.persistLocked(); err != nil {
		return "", err
	}
	return sha, nil
}

func (s *Store) recordHDDLocked(board, app, sha, path string) {
	for i, e := range s.m.HDDs {
		if e.Board == board && e.App == app && e.Sha == sha {
			s.m.HDDs[i].Path = path
			return
		}
	}
	s.m.HDDs = append(s.m.HDDs, hddEntry{Board: board, App: app, Sha: sha, Path: path})
}

// GetModel resolves sha to an on-disk path, if present.
func (s *Store) GetModel(sha string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.m.Models {
		if e.Sha == sha {
			if _, err := os.Stat(e.Path); err == nil {
				return e.Path, true
			}
		}
	}
	return "", false
}

// PutModel stores data under models/<sha>-<name>, deduplicating by SHA:
// a model already present under its SHA is never rewritten or
// duplicated, satisfying the "stored at most once" invariant even when
// reached from two different (board, app) resolutions.
func (s *Store) PutModel(name string, data []byte) (string, error) {
	sha := sumHex(data)

	s.mu.Lock()
	for _, e := range s.m.Models {
		if e.Sha == sha {
			s.mu.Unlock()
			return sha, nil
		}
	}
	s.mu.Unlock()

	path := filepath.Join(s.root, "models", sha+"-"+name)
	if _, err := os.Stat(path); err != nil {
		if err := writeAtomic(path, data); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.m.Models {
		if e.Sha == sha {
			return sha, nil
		}
	}
	s.m.Models = append(s.m.Models, modelEntry{Sha: sha, Path: path, Name: name})
	if err := s.persistLocked(); err != nil {
		return "", err
	}
	return sha, nil
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial write.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("cache: rename into place: %w", err)
	}
	return nil
}

// repointSymlink atomically repoints link at target (a relative name in
// the same directory as link), via a temporary symlink plus rename so a
// concurrent reader never sees a missing or half-written symlink.
func repointSymlink(link, target string) error {
	tmp := link + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("cache: create temp symlink: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		return fmt.Errorf("cache: rename symlink into place: %w", err)
	}
	return nil
}
