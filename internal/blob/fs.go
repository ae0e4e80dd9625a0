package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Filesystem implements Store over a local directory, typically the mounted
// LIMS file store. A sidecar file (key + `.meta`) carries content type and
// user metadata. Not safe for concurrent writers beyond per-file creation.
type Filesystem struct {
	root string
}

// NewFilesystem returns a filesystem store rooted at path, creating it if
// needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./filestore"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Filesystem{root: root}, nil
}

// Driver returns DriverFilesystem.
func (s *Filesystem) Driver() Driver { return DriverFilesystem }

// sanitizeKey forbids traversal out of the root and absolute keys.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key traversal")
	}
	return clean, nil
}

func (s *Filesystem) pathFor(key string) (dataPath, metaPath string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(s.root, k)
	metaPath = dataPath + ".meta"
	return
}

type metaFile struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Put streams the reader to a temp file, computes the etag, and moves the
// result into place atomically.
func (s *Filesystem) Put(_ context.Context, key string, r io.Reader, opts WriteOptions) (ObjectInfo, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return ObjectInfo{}, fmt.Errorf("file %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return ObjectInfo{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return ObjectInfo{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	h := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(tmp, h), r)
	if copyErr != nil {
		_ = tmp.Close()
		return ObjectInfo{}, copyErr
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return ObjectInfo{}, err
	}
	etag := hex.EncodeToString(h.Sum(nil))
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		_ = tmp.Close()
		return ObjectInfo{}, err
	}
	now := time.Now().UTC()
	mf := metaFile{ContentType: opts.ContentType, Metadata: cloneMetadata(opts.Metadata), ETag: etag, Size: size, CreatedAt: now, UpdatedAt: now}
	if err := writeMeta(metaPath, mf); err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: size, ContentType: opts.ContentType, ETag: etag, Metadata: cloneMetadata(opts.Metadata), LastModified: now}, nil
}

// Get opens the file and reads its sidecar metadata. Files written straight
// into the mount by the LIMS have no sidecar; their info is derived from the
// file itself.
func (s *Filesystem) Get(_ context.Context, key string) (ObjectInfo, io.ReadCloser, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return ObjectInfo{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return ObjectInfo{}, nil, err
	}
	info, err := s.infoFor(key, dataPath, metaPath)
	if err != nil {
		_ = file.Close()
		return ObjectInfo{}, nil, err
	}
	return info, file, nil
}

// Head reads sidecar metadata, falling back to the file itself.
func (s *Filesystem) Head(_ context.Context, key string) (ObjectInfo, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if _, err := os.Stat(dataPath); err != nil {
		return ObjectInfo{}, err
	}
	return s.infoFor(key, dataPath, metaPath)
}

func (s *Filesystem) infoFor(key, dataPath, metaPath string) (ObjectInfo, error) {
	mf, err := readMeta(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		st, statErr := os.Stat(dataPath)
		if statErr != nil {
			return ObjectInfo{}, statErr
		}
		return ObjectInfo{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC()}, nil
	}
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: mf.Size, ContentType: mf.ContentType, ETag: mf.ETag, Metadata: cloneMetadata(mf.Metadata), LastModified: mf.UpdatedAt}, nil
}

// Delete removes the file and its sidecar.
func (s *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dataPath); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.Remove(dataPath); err != nil {
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List walks the root collecting sidecar files under the prefix.
func (s *Filesystem) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".meta") {
			return nil
		}
		mf, err := readMeta(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(path, ".meta"))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			infos = append(infos, ObjectInfo{Key: key, Size: mf.Size, ContentType: mf.ContentType, ETag: mf.ETag, Metadata: cloneMetadata(mf.Metadata), LastModified: mf.UpdatedAt})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL is unsupported; scripts on the LIMS host read the mount directly.
func (s *Filesystem) PresignURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", ErrUnsupported
}

func writeMeta(path string, mf metaFile) error {
	b, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func readMeta(path string) (metaFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return metaFile{}, err
	}
	var mf metaFile
	if err := json.Unmarshal(b, &mf); err != nil {
		return metaFile{}, err
	}
	return mf, nil
}
