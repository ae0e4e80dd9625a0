package epp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"limsepp/internal/blob"
)

// FetchResultFile returns the content of an uploaded result file, preferring
// the API download and falling back to the file store keyed by the artifact
// id. Archived file stores keep content after the LIMS stops serving it.
func FetchResultFile(ctx context.Context, download func(context.Context) (io.ReadCloser, error), store blob.Store, key string) (io.ReadCloser, error) {
	rc, err := download(ctx)
	if err == nil {
		return rc, nil
	}
	if store == nil {
		return nil, err
	}
	_, src, storeErr := store.Get(ctx, key)
	if storeErr != nil {
		return nil, fmt.Errorf("fetch result file %s: %w", key, err)
	}
	return src, nil
}

// AttachFile copies a produced file into the working directory named
// "{entityID}_{basename}". The EPP node uploads such files automatically
// when the process output is set up for it. Returns the destination path.
func AttachFile(src, entityID string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, entityID+"_"+filepath.Base(src))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy to %s: %w", dst, err)
	}
	return dst, nil
}
