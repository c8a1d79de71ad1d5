package fingerprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"

	"imagewatch/internal/fileutil"
	"imagewatch/internal/logging"
)

// DB holds the reference fingerprints, keyed by an opaque reference id
// (conventionally the source image path). Read-only once loaded.
type DB map[string]Hashes

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
	".gif":  {},
}

// LoadDB reads a reference database from disk.
func LoadDB(path string) (DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DB{}, nil
		}
		return nil, fmt.Errorf("read hash db: %w", err)
	}
	if len(data) == 0 {
		return DB{}, nil
	}
	var db DB
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("parse hash db: %w", err)
	}
	return db, nil
}

// SaveDB writes the database to disk atomically.
func SaveDB(path string, db DB) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hash db: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("persist hash db: %w", err)
	}
	return nil
}

// ReferenceIDs returns the reference ids in sorted order. Matching iterates in
// this order so the reported reference is deterministic.
func (db DB) ReferenceIDs() []string {
	ids := make([]string, 0, len(db))
	for id := range db {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildFromDir walks a directory of known images and computes a hash set for
// each. Files that cannot be decoded are skipped with a warning.
func BuildFromDir(dir string, logger *slog.Logger) (DB, error) {
	logger = logging.NewComponentLogger(logger, "hashdb")

	db := DB{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := imageExtensions[ext]; !ok {
			return nil
		}

		img, err := DecodeFile(path)
		if err != nil {
			logger.Warn("skipping undecodable image",
				logging.String("path", path),
				logging.Error(err))
			return nil
		}
		hashes, err := Compute(img)
		if err != nil {
			logger.Warn("skipping unhashable image",
				logging.String("path", path),
				logging.Error(err))
			return nil
		}
		db[path] = hashes
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk image directory: %w", err)
	}
	return db, nil
}

// DecodeFile opens and decodes an image from disk.
func DecodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image %q: %w", path, err)
	}
	return img, nil
}
