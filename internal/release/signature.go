package release

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// signature files are a few hundred bytes; anything bigger is not a signature
const maxSignatureSize = 64 << 10

type signatureFetcher struct {
	client  *retryablehttp.Client
	timeout time.Duration
}

func newSignatureFetcher(retries int, timeout time.Duration) *signatureFetcher {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = retries
	return &signatureFetcher{
		client:  client,
		timeout: timeout,
	}
}

func (f *signatureFetcher) fetch(ctx context.Context, url string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	res, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	sig, err := io.ReadAll(io.LimitReader(res.Body, maxSignatureSize+1))
	if err != nil {
		return "", err
	}
	if len(sig) > maxSignatureSize {
		return "", fmt.Errorf("signature exceeds %d bytes", maxSignatureSize)
	}
	return string(sig), nil
}
