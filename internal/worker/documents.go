package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/evalia-go-api/pkg/ai"
)

// ErrDocumentUnreadable indicates a local document path cannot be read.
// This is a caller/data bug, not a transient condition.
var ErrDocumentUnreadable = errors.New("document unreadable")

// uploadDocuments sends each local path to the inference service in
// parallel and returns the handles in input order plus a release function.
// The release function deletes every uploaded document exactly once and
// must run on every exit path of the calling job; delete failures are
// logged, never propagated. If any upload fails, documents that did make
// it are released here and an error is returned.
func uploadDocuments(ctx context.Context, analyzer ai.DocumentAnalyzer, logger zerolog.Logger, paths []string) ([]ai.FileHandle, func(), error) {
	handles := make([]ai.FileHandle, len(paths))
	uploaded := make([]bool, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, path := range paths {
		group.Go(func() error {
			mime, err := mimetype.DetectFile(path)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, path, err)
			}

			handle, err := analyzer.Upload(groupCtx, path, mime.String())
			if err != nil {
				return err
			}

			handles[i] = handle
			uploaded[i] = true
			return nil
		})
	}

	release := func() {
		for i, handle := range handles {
			if !uploaded[i] {
				continue
			}
			// Deletion runs against a fresh context: the job context may
			// already be cancelled when cleanup happens.
			if err := analyzer.Delete(context.Background(), handle.Name); err != nil {
				logger.Warn().Err(err).Str("document", handle.Name).
					Msg("failed to release uploaded document")
			}
		}
	}

	if err := group.Wait(); err != nil {
		release()
		return nil, func() {}, err
	}

	var once sync.Once
	return handles, func() { once.Do(release) }, nil
}
