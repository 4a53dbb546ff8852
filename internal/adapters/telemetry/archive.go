// Package telemetry archives realtime scores to disk, one JSON file per score.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/tarelay/internal/domain/model"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/okian/tarelay/pkg/metrics"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// maxSuffix bounds the "-N" suffixes tried for scores sharing a millisecond.
	maxSuffix = 1000
)

var (
	// ErrNoDir is returned when an Archive is created without a directory.
	ErrNoDir = errors.New("telemetry directory is required")
	// ErrNameExhausted is returned when every file name for a millisecond is taken.
	ErrNameExhausted = errors.New("no free file name")
)

// Archive writes every recorded score to <dir>/<player name>/<unix millis>.json.
// Scores landing in the same millisecond get <unix millis>-N.json; existing
// files are never overwritten.
type Archive struct {
	dir string
	now func() time.Time
	log logger.Logger
}

// Option applies a configuration option to the Archive.
type Option func(*Archive)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.log = l
		}
	}
}

// New creates an Archive rooted at dir.
func New(dir string, opts ...Option) (*Archive, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrNoDir
	}
	a := &Archive{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("telemetry")
	}
	return a, nil
}

// Record writes score under the player's directory.
func (a *Archive) Record(ctx context.Context, player model.User, score model.RealtimeScore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(a.dir, folder(player))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		metrics.RecordTelemetryWrite("error")
		return fmt.Errorf("create %s: %w", dir, err)
	}
	b, err := json.Marshal(score)
	if err != nil {
		metrics.RecordTelemetryWrite("error")
		return fmt.Errorf("marshal score: %w", err)
	}
	path, err := writeNew(dir, strconv.FormatInt(a.now().UnixMilli(), 10), b)
	if err != nil {
		metrics.RecordTelemetryWrite("error")
		return err
	}
	metrics.RecordTelemetryWrite("ok")
	a.log.Debug(ctx, "score archived", logger.String("path", path))
	return nil
}

// writeNew writes b to the first free name among stem.json, stem-1.json, ...
func writeNew(dir, stem string, b []byte) (string, error) {
	for i := 0; i < maxSuffix; i++ {
		name := stem + ".json"
		if i > 0 {
			name = stem + "-" + strconv.Itoa(i) + ".json"
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		_, err = f.Write(b)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("write %s/%s.json: %w", dir, stem, ErrNameExhausted)
}

// folder names the per-player directory. Names are not trusted as paths.
func folder(u model.User) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(u.Name))
	if name == "" || name == "." || name == ".." {
		return u.GUID
	}
	return name
}
