package preview

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"openroom/internal/logging"
)

var errInvalidAssetID = errors.New("invalid asset id")

// ThumbnailStore persists encoded thumbnails as <dir>/<assetId>.png. A store
// with an empty dir keeps nothing.
type ThumbnailStore struct {
	dir string
}

// NewThumbnailStore returns a store rooted at dir, creating it if needed.
func NewThumbnailStore(dir string) *ThumbnailStore {
	if dir == "" {
		logging.Debug("ThumbnailStore: persistence disabled")
		return &ThumbnailStore{}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Warn("ThumbnailStore: failed to create %s: %v", dir, err)
	}
	logging.Debug("ThumbnailStore: %s", dir)
	return &ThumbnailStore{dir: dir}
}

// Enabled reports whether thumbnails are persisted.
func (s *ThumbnailStore) Enabled() bool {
	return s != nil && s.dir != ""
}

// Path returns where assetID's thumbnail lives.
func (s *ThumbnailStore) Path(assetID string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("thumbnail store disabled")
	}
	if assetID == "" || assetID == "." || assetID == ".." || strings.ContainsAny(assetID, `/\`) {
		return "", fmt.Errorf("%w: %q", errInvalidAssetID, assetID)
	}
	return filepath.Join(s.dir, assetID+".png"), nil
}

// Load returns the stored thumbnail verbatim.
func (s *ThumbnailStore) Load(assetID string) ([]byte, bool) {
	path, err := s.Path(assetID)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Save writes data through a uniquely named temp file and renames it into
// place, so readers never see a partial thumbnail.
func (s *ThumbnailStore) Save(assetID string, data []byte) error {
	path, err := s.Path(assetID)
	if err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("install thumbnail: %w", err)
	}
	return nil
}
