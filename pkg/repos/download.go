package repos

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
)

// Download streams url into destPath. The body is written to a .part
// file next to the destination and renamed only once fully received, so
// an interrupted download never leaves a file that looks complete.
// progress, when non-nil, is called with (received, total) byte counts;
// total is -1 when the server did not send a length.
func Download(ctx context.Context, rawurl, destPath string, progress func(done, total int64)) error {
	client := newRetryClient()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	// Downloads can legitimately take longer than a metadata fetch.
	client.HTTPClient.Timeout = 0

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: rawurl, Status: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	partPath := destPath + ".part"
	f, err := os.Create(partPath)
	if err != nil {
		return err
	}

	total := resp.ContentLength
	var done int64
	buf := make([]byte, 128*1024)
	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			return err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return fmt.Errorf("writing %s: %w", partPath, werr)
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			return fmt.Errorf("downloading %s: %w", rawurl, readErr)
		}
	}

	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(partPath, destPath)
}
