package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisIndex keeps the index in Redis:
//
//	{prefix}:ids              sorted set of lower-cased ids (lexicographic)
//	{prefix}:versions:{id}    set of indexed versions
//	{prefix}:pkg:{id}:{ver}   hash of searchable fields
type RedisIndex struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisIndex creates an index on an existing client
func NewRedisIndex(client redis.UniversalClient, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = "pkgfeed"
	}
	return &RedisIndex{client: client, prefix: prefix}
}

// DialRedisIndex connects to addr and verifies the connection
func DialRedisIndex(ctx context.Context, addr, prefix string) (*RedisIndex, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisIndex(client, prefix), nil
}

func (r *RedisIndex) idsKey() string {
	return r.prefix + ":ids"
}

func (r *RedisIndex) versionsKey(id string) string {
	return fmt.Sprintf("%s:versions:%s", r.prefix, models.NormalizeID(id))
}

func (r *RedisIndex) packageKey(id, version string) string {
	return fmt.Sprintf("%s:pkg:%s:%s", r.prefix, models.NormalizeID(id), strings.ToLower(version))
}

// Index writes a package version in one transaction
func (r *RedisIndex) Index(ctx context.Context, pkg *models.PackageDescriptor) error {
	version := pkg.NormalizedVersion()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.packageKey(pkg.ID, version), map[string]interface{}{
			"id":            pkg.ID,
			"version":       version,
			"is_prerelease": pkg.IsPrerelease,
			"title":         pkg.Title,
			"description":   pkg.Description,
			"terms":         terms(pkg),
		})
		pipe.SAdd(ctx, r.versionsKey(pkg.ID), strings.ToLower(version))
		pipe.ZAdd(ctx, r.idsKey(), redis.Z{Score: 0, Member: pkg.Key()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index %s in redis: %w", pkg, err)
	}
	return nil
}

// Remove deletes a package version and drops the id once no version is left
func (r *RedisIndex) Remove(ctx context.Context, id, version string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.packageKey(id, version))
		pipe.SRem(ctx, r.versionsKey(id), strings.ToLower(version))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s %s from redis: %w", id, version, err)
	}

	left, err := r.client.SCard(ctx, r.versionsKey(id)).Result()
	if err != nil {
		return err
	}
	if left == 0 {
		return r.client.ZRem(ctx, r.idsKey(), models.NormalizeID(id)).Err()
	}
	return nil
}

// Close closes the underlying client
func (r *RedisIndex) Close() error {
	return r.client.Close()
}
