package domain

import (
	"context"
	"fmt"
	"net/http"
)

// Response is a successful HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body is decoded JSON (map[string]any, []any, ...), a string for markup
	// responses, or nil when the server sent no content.
	Body any
	// Raw is the undecoded body.
	Raw []byte
}

// Result is the single outcome of a dispatched request: exactly one of
// Response and Err is set.
type Result struct {
	Response *Response
	Err      error
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Succeed returns a channel already holding a successful result.
func Succeed(resp *Response) <-chan Result {
	ch := make(chan Result, 1)
	ch <- Result{Response: resp}
	close(ch)
	return ch
}

// Fail returns a channel already holding a failed result.
func Fail(err error) <-chan Result {
	ch := make(chan Result, 1)
	ch <- Result{Err: err}
	close(ch)
	return ch
}

// Deliver waits for the result on its own goroutine and invokes exactly one
// of success or failure. A channel closed without a value counts as a failure.
// The returned channel closes once the continuation has returned.
func Deliver(
	results <-chan Result,
	success func(header http.Header, resp *Response),
	failure func(err error),
) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, ok := <-results
		switch {
		case !ok:
			if failure != nil {
				failure(fmt.Errorf("%w: no result delivered", ErrNetwork))
			}
		case res.Err != nil || res.Response == nil:
			if failure != nil {
				err := res.Err
				if err == nil {
					err = fmt.Errorf("%w: empty response", ErrNetwork)
				}
				failure(err)
			}
		default:
			if success != nil {
				success(res.Response.Header, res.Response)
			}
		}
	}()
	return done
}

// Await blocks until the result arrives or ctx is done.
func Await(ctx context.Context, results <-chan Result) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-results:
		if !ok {
			return nil, fmt.Errorf("%w: no result delivered", ErrNetwork)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Response, nil
	}
}
