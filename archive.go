package lexgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/hupe1980/lexgo/blobstore"
)

// ArchiveSegment uploads a committed segment's files from basePath to store
// under prefix. The updated-documents file and any extra codec side files
// (e.g. a terms dictionary) are uploaded when present.
//
// Archival is strictly post-commit: failures leave the local segment
// untouched, and a partial upload can simply be retried.
func ArchiveSegment(ctx context.Context, store blobstore.Store, basePath, prefix string, extra ...string) error {
	required := []string{IndexFile, MetaFile}
	optional := append([]string{UpdatedDocumentsFile}, extra...)

	for _, name := range required {
		if err := archiveFile(ctx, store, basePath, prefix, name); err != nil {
			return err
		}
	}
	for _, name := range optional {
		err := archiveFile(ctx, store, basePath, prefix, name)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func archiveFile(ctx context.Context, store blobstore.Store, basePath, prefix, name string) error {
	f, err := os.Open(filepath.Join(basePath, name))
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := store.Create(ctx, path.Join(prefix, name))
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("archive %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	return nil
}
