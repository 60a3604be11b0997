// Package pipeline imports FIT files into the workout store and exports
// parsed workouts to JSON, CSV and Parquet artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lucasjlepore/fitlog"
)

// User-facing import outcomes.
const (
	MsgUploaded      = "Workout uploaded successfully"
	MsgDuplicate     = "This workout has already been uploaded"
	MsgFileNotFound  = "File not found"
	MsgFolderMissing = "Folder not found"
	MsgNoFitFiles    = "No FIT files found in folder"
	msgParseFailed   = "Failed to parse FIT file: "
)

// Store is the persistence the importer needs.
type Store interface {
	Exists(ctx context.Context, fileHash string) (bool, error)
	Insert(ctx context.Context, w *fitlog.ParsedWorkout) (id string, inserted bool, err error)
}

// Importer parses FIT files and stores them, skipping content already stored.
type Importer struct {
	Parser     *fitlog.Parser
	Store      Store
	Workers    int
	Extensions []string
	Log        *slog.Logger
}

func (im *Importer) logger() *slog.Logger {
	if im.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return im.Log
}

// ImportFile imports one file from disk.
func (im *Importer) ImportFile(ctx context.Context, path string) UploadResult {
	return im.ImportFiles(ctx, []string{path})[0]
}

// ImportBytes imports an in-memory FIT file, e.g. an HTTP upload.
func (im *Importer) ImportBytes(ctx context.Context, filename string, data []byte) UploadResult {
	res := UploadResult{Path: filename}
	w, err := im.Parser.ParseBytes(filename, data)
	if err != nil {
		res.Message = msgParseFailed + err.Error()
		im.logger().Warn("import failed", "file", filename, "err", err)
		return res
	}
	return im.store(ctx, res, w)
}

// ImportFiles parses paths concurrently, bounded by Workers, then stores
// the results in input order. It returns one result per path.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) []UploadResult {
	results := make([]UploadResult, len(paths))
	parsed := make([]*fitlog.ParsedWorkout, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(im.Workers, 1))
	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, err := im.parse(path)
			if err != nil {
				results[i].Message = err.Error()
				im.logger().Warn("import failed", "path", path, "err", err)
				return nil
			}
			parsed[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for i := range results {
			if parsed[i] == nil && results[i].Message == "" {
				results[i].Message = err.Error()
			}
		}
	}

	for i, w := range parsed {
		if w == nil {
			continue
		}
		results[i] = im.store(ctx, results[i], w)
	}
	return results
}

// ImportFolder imports every file below dir whose extension matches
// Extensions, case-insensitively. A folder with no matching files yields a
// single unsuccessful result.
func (im *Importer) ImportFolder(ctx context.Context, dir string) []UploadResult {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return []UploadResult{{Path: dir, Message: MsgFolderMissing}}
	}

	paths, err := im.findFiles(dir)
	if err != nil {
		return []UploadResult{{Path: dir, Message: fmt.Sprintf("Failed to scan folder: %v", err)}}
	}
	if len(paths) == 0 {
		return []UploadResult{{Path: dir, Message: MsgNoFitFiles}}
	}
	im.logger().Info("importing folder", "dir", dir, "files", len(paths))
	return im.ImportFiles(ctx, paths)
}

func (im *Importer) findFiles(dir string) ([]string, error) {
	exts := im.Extensions
	if len(exts) == 0 {
		exts = []string{".fit"}
	}
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		for _, ext := range exts {
			if strings.HasSuffix(name, strings.ToLower(ext)) {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

func (im *Importer) parse(path string) (*fitlog.ParsedWorkout, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, errors.New(MsgFileNotFound)
	}
	w, err := im.Parser.ParseFile(path)
	if err != nil {
		return nil, errors.New(msgParseFailed + err.Error())
	}
	return w, nil
}

func (im *Importer) store(ctx context.Context, res UploadResult, w *fitlog.ParsedWorkout) UploadResult {
	res.FileHash = w.FileHash
	exists, err := im.Store.Exists(ctx, w.FileHash)
	if err != nil {
		res.Message = fmt.Sprintf("Failed to check for duplicates: %v", err)
		return res
	}
	if exists {
		res.Duplicate = true
		res.Message = MsgDuplicate
		im.logger().Info("skipping duplicate workout", "path", res.Path, "hash", w.FileHash)
		return res
	}

	id, inserted, err := im.Store.Insert(ctx, w)
	if err != nil {
		res.Message = fmt.Sprintf("Failed to save workout: %v", err)
		im.logger().Error("store insert failed", "path", res.Path, "err", err)
		return res
	}
	if !inserted {
		res.Duplicate = true
		res.Message = MsgDuplicate
		return res
	}

	res.Success = true
	res.WorkoutID = id
	res.Message = MsgUploaded
	im.logger().Info("imported workout", "path", res.Path, "id", id, "type", derefOr(w.WorkoutType, "unknown"))
	return res
}

func derefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
