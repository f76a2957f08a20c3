package mapstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Filesystem stores maps under a local base directory using the package's
// fixed layout. It is the default backend; report assembly reads the same
// paths directly, so the layout is part of the store's contract.
type Filesystem struct {
	base   string
	logger *slog.Logger
}

// NewFilesystem creates the base directory if needed and returns the store.
func NewFilesystem(base string, logger *slog.Logger) (*Filesystem, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create map store root: %w", err)
	}
	logger.Info("map store initialized", "driver", "fs", "base_path", base)
	return &Filesystem{base: base, logger: logger}, nil
}

func (f *Filesystem) absPath(key Key) (string, error) {
	rel, err := key.RelPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(f.base, filepath.FromSlash(rel)), nil
}

// Store implements the Store interface's idempotent write contract.
func (f *Filesystem) Store(_ context.Context, src io.Reader, key Key, extra map[string]any, overwrite bool) (Metadata, error) {
	dest, err := f.absPath(key)
	if err != nil {
		return Metadata{}, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return Metadata{}, fmt.Errorf("read source image: %w", err)
	}
	if len(data) == 0 {
		return Metadata{}, ErrEmptySource
	}

	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			f.logger.Warn("map already exists", "path", dest)
			return f.existingMetadata(dest)
		} else if !os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("stat map file: %w", err)
		}
	}

	meta := buildMetadata(key, dest, extra)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Metadata{}, fmt.Errorf("create storage directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return Metadata{}, fmt.Errorf("write map file: %w", err)
	}
	f.logger.Info("map stored", "path", dest, "size_bytes", len(data))

	f.writeSidecar(dest, meta)
	return meta, nil
}

// writeSidecar persists metadata next to the binary. Failure is tolerated:
// the binary is already durable and Get degrades to tuple-derived defaults.
func (f *Filesystem) writeSidecar(dest string, meta Metadata) {
	buf, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		f.logger.Error("marshal map metadata failed", "path", dest, "error", err)
		return
	}
	sidecar := SidecarPath(dest)
	if err := os.WriteFile(sidecar, buf, 0o644); err != nil {
		f.logger.Error("write map metadata failed", "path", sidecar, "error", err)
		return
	}
}

// existingMetadata loads the sidecar for an already-stored binary.
func (f *Filesystem) existingMetadata(dest string) (Metadata, error) {
	buf, err := os.ReadFile(SidecarPath(dest))
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrMetadataMissing, dest)
		}
		return Metadata{}, fmt.Errorf("read map metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(buf, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse map metadata: %w", err)
	}
	return meta, nil
}

// Get returns nil when the binary is absent; a missing or unreadable
// sidecar degrades to tuple-derived defaults rather than failing.
func (f *Filesystem) Get(_ context.Context, key Key) (*Metadata, error) {
	dest, err := f.absPath(key)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat map file: %w", err)
	}

	buf, err := os.ReadFile(SidecarPath(dest))
	if err != nil {
		meta := defaultMetadata(key, dest)
		return &meta, nil
	}
	var meta Metadata
	if err := json.Unmarshal(buf, &meta); err != nil {
		f.logger.Warn("map metadata unreadable, using defaults", "path", dest, "error", err)
		meta = defaultMetadata(key, dest)
	}
	return &meta, nil
}

// List walks the filter-narrowed part of the tree and collects sidecar
// metadata, most recently generated first.
func (f *Filesystem) List(_ context.Context, filter Filter) ([]Metadata, error) {
	root := f.base
	if filter.CountyID != "" {
		root = filepath.Join(root, filter.CountyID)
		if filter.Year != 0 && filter.Week != 0 {
			root = filepath.Join(root, strconv.Itoa(filter.Year), fmt.Sprintf("%02d", filter.Week))
		}
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var maps []Metadata
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, sidecarSuffix) {
			return nil
		}
		if !matchesPathFilter(f.base, p, filter) {
			return nil
		}
		buf, err := os.ReadFile(SidecarPath(p))
		if err != nil {
			return nil // binary without sidecar, skip
		}
		var meta Metadata
		if err := json.Unmarshal(buf, &meta); err != nil {
			f.logger.Warn("skipping unreadable map metadata", "path", p, "error", err)
			return nil
		}
		if filter.Variable != "" && meta.Variable != filter.Variable {
			return nil
		}
		maps = append(maps, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan map store: %w", err)
	}

	sort.Slice(maps, func(i, j int) bool {
		return maps[i].GeneratedAt.After(maps[j].GeneratedAt)
	})
	return maps, nil
}

// matchesPathFilter applies year/week filters from the path segments for
// scans that were not already narrowed to a single directory.
func matchesPathFilter(base, p string, filter Filter) bool {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 { // county/year/week/file
		return false
	}
	if filter.Year != 0 && parts[1] != strconv.Itoa(filter.Year) {
		return false
	}
	if filter.Week != 0 && parts[2] != fmt.Sprintf("%02d", filter.Week) {
		return false
	}
	return true
}

// Delete removes the binary then the sidecar. A missing binary is reported
// as false, not an error.
func (f *Filesystem) Delete(_ context.Context, key Key) (bool, error) {
	dest, err := f.absPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat map file: %w", err)
	}
	if err := os.Remove(dest); err != nil {
		return false, fmt.Errorf("delete map file: %w", err)
	}
	f.logger.Info("map deleted", "path", dest)

	sidecar := SidecarPath(dest)
	if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("delete map metadata failed", "path", sidecar, "error", err)
	}
	return true, nil
}
