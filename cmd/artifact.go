package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/artifact"
	"github.com/ca-srg/leakscope/internal/export"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/types"
)

type (
	artifactStore interface {
		Put(ctx context.Context, path string, body []byte, contentType string) error
		Get(ctx context.Context, path string) ([]byte, error)
	}
	artifactStoreFactory func(ctx context.Context, cfg *types.Config, log *zap.Logger) (artifactStore, error)
)

var newArtifactStore artifactStoreFactory = func(ctx context.Context, cfg *types.Config, log *zap.Logger) (artifactStore, error) {
	return artifact.NewS3Store(ctx, cfg, log)
}

// saveCSV writes the export of rs to a local file or an s3:// path.
func saveCSV(ctx context.Context, cfg *types.Config, log *zap.Logger, path string, rs *record.ResultSet) error {
	if !artifact.IsS3Path(path) {
		return writeCSVFile(path, rs)
	}

	data, err := export.Export(rs)
	if err != nil {
		return err
	}
	store, err := newArtifactStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	return store.Put(ctx, path, data, "text/csv; charset=utf-8")
}

func writeCSVFile(path string, rs *record.ResultSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Write(f, rs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// openInput returns a reader for a local file, an s3:// object, or stdin ("-").
func openInput(ctx context.Context, cfg *types.Config, log *zap.Logger, path string, stdin io.Reader) (io.ReadCloser, error) {
	switch {
	case path == "-":
		return io.NopCloser(stdin), nil
	case artifact.IsS3Path(path):
		store, err := newArtifactStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		data, err := store.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return f, nil
	}
}
