package main

import (
	"github.com/redis/go-redis/v9"
)

// newRedisClient builds a client from a redis:// URL. Socket reads and
// writes stop at the caller's context deadline, so a hung server costs one
// store timeout per call instead of the client's ReadTimeout.
func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.ContextTimeoutEnabled = true
	return redis.NewClient(opts), nil
}
