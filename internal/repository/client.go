package repository

import "context"

// restClient is the subset of apiclient.Client the upstream repositories use.
type restClient interface {
	Get(ctx context.Context, endpoint string, out interface{}) error
	Post(ctx context.Context, endpoint string, body, out interface{}) error
	Put(ctx context.Context, endpoint string, body, out interface{}) error
	Delete(ctx context.Context, endpoint string) error
}
