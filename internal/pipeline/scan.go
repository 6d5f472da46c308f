package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mythforge/internal/config"
	"mythforge/internal/store"
)

// ScanResult reports one ingest scan over the content directories.
type ScanResult struct {
	Queued  int
	Skipped int
	Errors  []error
}

type ScanOptions struct {
	// Full re-queues every file regardless of recorded source hashes.
	Full bool
}

// Scan walks the configured content paths and enqueues each markdown file
// whose hash is not already recorded by a completed or pending queue item.
// Unchanged files are skipped so repeated scans stay cheap.
func Scan(ctx context.Context, cfg *config.ProjectConfig, db store.Store, options ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	knownHashes := make(map[string]string)
	if !options.Full {
		completed, err := db.CompletedHashes(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading completed hashes: %w", err)
		}
		for path, hash := range completed {
			knownHashes[path] = hash
		}

		pending, err := db.PendingItems(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("loading pending items: %w", err)
		}
		for _, item := range pending {
			knownHashes[item.FilePath] = item.SourceHash
		}
	}

	files, err := walkMarkdownFiles(cfg.Content.Paths, cfg.Content.Exclude)
	if err != nil {
		return nil, fmt.Errorf("walking content paths: %w", err)
	}

	for _, path := range files {
		hash, err := computeHash(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("hashing %s: %w", path, err))
			continue
		}
		if known, ok := knownHashes[path]; ok && known == hash {
			result.Skipped++
			continue
		}

		_, err = db.Enqueue(ctx, store.QueueInput{
			FilePath:   path,
			FileType:   "markdown",
			SourceType: "filesystem",
			SourceHash: hash,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("enqueueing %s: %w", path, err))
			continue
		}
		result.Queued++
	}

	return result, nil
}

func walkMarkdownFiles(roots []string, excludes []string) ([]string, error) {
	excluded := make([]string, 0, len(excludes))
	for _, path := range excludes {
		if path == "" {
			continue
		}
		excluded = append(excluded, filepath.Clean(path))
	}

	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
				return nil
			}
			if isExcluded(path, excluded) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isExcluded(path string, excludes []string) bool {
	clean := filepath.Clean(path)
	for _, exclude := range excludes {
		if exclude == clean || strings.HasPrefix(clean, exclude+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

func computeHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
