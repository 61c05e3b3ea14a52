package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/schema"
)

// currentCacheVersion defines the version of the cache schema
const currentCacheVersion = 1

// maxCacheAge bounds how long a cached history stays valid.
const maxCacheAge = 7 * 24 * time.Hour

// CollectCommitHistory mines the commit history, reusing the cached result
// while HEAD has not moved.
func CollectCommitHistory(ctx context.Context, cfg *contract.Config, client contract.GitClient, mgr contract.CacheManager) ([]schema.CommitRecord, error) {
	var store contract.CacheStore
	if mgr != nil {
		store = mgr.GetCommitStore()
	}
	if store == nil {
		// Fallback to direct computation
		return collectCommits(ctx, cfg, client)
	}

	key := generateCacheKey(ctx, cfg, client)

	// Check for cache hit
	if result := checkCacheHit(store, key); result != nil {
		return result, nil
	}

	// Cache miss: compute and store
	return computeAndStore(ctx, cfg, client, store, key)
}

// checkCacheHit attempts to retrieve and validate a cached result
func checkCacheHit(store contract.CacheStore, key string) []schema.CommitRecord {
	data, version, ts, err := store.Get(key)
	if err != nil {
		return nil // Cache miss
	}

	// Validate version and staleness
	if version == currentCacheVersion {
		entryTimestamp := time.Unix(ts, 0)
		if time.Since(entryTimestamp) <= maxCacheAge {
			var result []schema.CommitRecord
			if err := json.Unmarshal(data, &result); err == nil {
				return result // Cache hit
			}
		}
	}

	return nil // Cache miss (stale or version mismatch)
}

// computeAndStore computes the result and stores it in cache
func computeAndStore(ctx context.Context, cfg *contract.Config, client contract.GitClient, store contract.CacheStore, key string) ([]schema.CommitRecord, error) {
	result, err := collectCommits(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	// Store in cache
	if data, err := json.Marshal(result); err == nil {
		_ = store.Set(key, data, currentCacheVersion, time.Now().Unix())
	}

	return result, nil
}

// generateCacheKey creates a unique key based on collection parameters
func generateCacheKey(ctx context.Context, cfg *contract.Config, client contract.GitClient) string {
	// Include repo hash to invalidate cache when repository state changes
	repoHash, err := client.GetRepoHash(ctx, cfg.RepoPath)
	if err != nil {
		repoHash = ""
	}

	key := fmt.Sprintf("%s:%d:%s", cfg.RepoPath, cfg.MaxCommits, repoHash)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}
