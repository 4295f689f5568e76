package pipeline

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

const prefetchTimeout = 10 * time.Second

// Prefetcher warms CDN caches for thumbnails with HEAD requests. It is best effort:
// requests run in the background and their outcome is ignored.
type Prefetcher struct {
	client *http.Client
	wg     sync.WaitGroup
}

// NewPrefetcher returns a prefetcher using client, or a client with a short timeout
// when client is nil
func NewPrefetcher(client *http.Client) *Prefetcher {
	if client == nil {
		client = &http.Client{Timeout: prefetchTimeout}
	}
	return &Prefetcher{client: client}
}

// Prefetch starts one background HEAD request per absolute http(s) URL and returns
// immediately
func (pf *Prefetcher) Prefetch(urls []string) {
	for _, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		pf.wg.Add(1)
		go func(u string) {
			defer pf.wg.Done()
			pf.head(u)
		}(u)
	}
}

func (pf *Prefetcher) head(u string) {
	ctx, cancel := context.WithTimeout(context.Background(), prefetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return
	}
	resp, err := pf.client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

// Wait blocks until every started request has finished
func (pf *Prefetcher) Wait() {
	pf.wg.Wait()
}
