package review

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// ScreenshotStore keeps uploaded proof images.
type ScreenshotStore interface {
	// Save writes data and returns its stored path and hex SHA-256.
	Save(data []byte, ext string, now time.Time) (path, sha string, err error)
	Remove(path string) error
}

// DirStore stores screenshots flat in one directory as <unix-millis>-<random>.<ext>.
type DirStore struct {
	Dir string
}

func (s DirStore) Save(data []byte, ext string, now time.Time) (string, string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", "", eris.Wrapf(err, "create upload dir %s", s.Dir)
	}
	name := fmt.Sprintf("%d-%d.%s", now.UnixMilli(), rand.Int63n(1_000_000_000), ext)
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", eris.Wrapf(err, "write screenshot %s", path)
	}
	sum := sha256.Sum256(data)
	return path, hex.EncodeToString(sum[:]), nil
}

func (s DirStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "remove screenshot %s", path)
	}
	return nil
}
