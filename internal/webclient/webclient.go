// Package webclient is the network transport underneath the API client.
// Implementations dispatch a single request and return the buffered response
// without interpreting its status code.
package webclient

import "context"

type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}
