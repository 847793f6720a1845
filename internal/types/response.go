package types

import (
	"bytes"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response is one successfully fetched page.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Request is the request that produced this page.
	Request *Request

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL string

	// Transport names the fetcher that produced the page ("http", "browser").
	Transport string

	// Attempt is the 1-based attempt that succeeded.
	Attempt int

	Elapsed   time.Duration
	FetchedAt time.Time

	doc *goquery.Document
}

// NewResponse builds a Response for req. header may be nil.
func NewResponse(req *Request, transport string, status int, header http.Header, body []byte, finalURL string, elapsed time.Duration) *Response {
	if header == nil {
		header = make(http.Header)
	}
	resp := &Response{
		StatusCode: status,
		Header:     header,
		Body:       body,
		Request:    req,
		FinalURL:   finalURL,
		Transport:  transport,
		Elapsed:    elapsed,
		FetchedAt:  time.Now(),
	}
	if req != nil {
		resp.Attempt = req.Attempt
	}
	return resp
}

// Document parses the body once and caches the result.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	r.doc = doc
	return doc, nil
}

// BaseURL is the URL relative links on this page resolve against.
func (r *Response) BaseURL() string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	if r.Request != nil {
		return r.Request.URLString()
	}
	return ""
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
