package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/campaign-insights/config"
)

// RemoteSource downloads a CSV extract over HTTP with a colly collector.
type RemoteSource struct {
	cfg       *config.Config
	url       string
	collector *colly.Collector
	Metrics   *Metrics

	handlersOnce sync.Once
	current      *attempt
}

// attempt captures the outcome of a single Visit.
type attempt struct {
	body          []byte
	status        int
	contentLength int64
	encoded       bool
	err           error
}

// NewRemoteSource builds a remote source configured from cfg.
func NewRemoteSource(cfg *config.Config, metrics *Metrics) (*RemoteSource, error) {
	parsed, err := url.Parse(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("source url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	// colly truncates silently at its limit (10MB unless set); one extra byte
	// exposes an oversized body so fetch can reject it.
	collector.MaxBodySize = 0
	if cfg.MaxBodySize > 0 {
		collector.MaxBodySize = cfg.MaxBodySize + 1
	}
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &RemoteSource{
		cfg:       cfg,
		url:       cfg.Source,
		collector: collector,
		Metrics:   metrics,
	}, nil
}

func (s *RemoteSource) String() string {
	return s.url
}

// Open downloads the whole extract, retrying transient failures with capped
// exponential backoff. The body is held in memory, so the returned reader
// owns no network resources.
func (s *RemoteSource) Open(ctx context.Context) (io.ReadCloser, error) {
	s.configureHandlers()

	for try := 0; ; try++ {
		if err := ctx.Err(); err != nil {
			return nil, &OpenError{Source: s.url, Err: err}
		}

		body, err := s.fetch()
		if err == nil {
			return io.NopCloser(bytes.NewReader(body)), nil
		}

		category := ErrorTypeLabel(err)
		s.Metrics.IncError(category)
		slog.Error("source fetch error",
			slog.String("url", s.url),
			slog.String("category", category),
			slog.Int("attempt", try+1),
			slog.Any("error", err),
		)

		if try >= s.cfg.MaxRetries || !retryable(err) {
			return nil, &OpenError{Source: s.url, Err: err}
		}

		s.Metrics.IncRetries()
		delay := s.backoff(try + 1)
		slog.Debug("retrying source fetch", slog.String("url", s.url), slog.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &OpenError{Source: s.url, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (s *RemoteSource) fetch() ([]byte, error) {
	s.current = &attempt{}
	visitErr := s.collector.Visit(s.url)
	result := s.current
	s.current = nil

	if visitErr != nil || result.err != nil || result.status >= http.StatusBadRequest {
		err := result.err
		if err == nil {
			err = visitErr
		}
		if classified := classifyError(err, result.status); classified != nil {
			return nil, classified
		}
		return nil, fmt.Errorf("fetch %s: status %d", s.url, result.status)
	}
	if err := s.checkComplete(result); err != nil {
		return nil, err
	}
	return result.body, nil
}

// checkComplete rejects a body cut at max_body_size or shorter than the
// declared Content-Length.
func (s *RemoteSource) checkComplete(result *attempt) error {
	size := len(result.body)
	if limit := s.cfg.MaxBodySize; limit > 0 && size > limit {
		return ErrTruncated{Err: fmt.Errorf("%w: more than %d bytes", errBodyTooLarge, limit)}
	}
	if !result.encoded && result.contentLength > int64(size) {
		return ErrTruncated{Err: fmt.Errorf("%w: got %d of %d bytes", errShortBody, size, result.contentLength)}
	}
	return nil
}

func (s *RemoteSource) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			s.Metrics.IncRequest("started")
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			s.Metrics.IncRequest("completed")
			s.Metrics.AddBytes(len(r.Body))
			if s.current == nil {
				return
			}
			s.current.status = r.StatusCode
			s.current.body = append([]byte(nil), r.Body...)
			s.current.contentLength = -1
			if r.Headers != nil {
				s.current.encoded = r.Headers.Get("Content-Encoding") != ""
				if n, err := strconv.ParseInt(r.Headers.Get("Content-Length"), 10, 64); err == nil {
					s.current.contentLength = n
				}
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			s.Metrics.IncRequest("failed")
			if s.current == nil {
				return
			}
			if r != nil {
				s.current.status = r.StatusCode
			}
			s.current.err = err
		})
	})
}

func (s *RemoteSource) backoff(try int) time.Duration {
	if try <= 0 {
		try = 1
	}

	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(try-1))
	if max := s.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
