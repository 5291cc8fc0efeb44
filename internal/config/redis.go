package config

// This file builds the go-redis client and the key-value store the registry
// and session locks live in.  Redis also backs rate limiting and the health
// cache; those degrade gracefully when the client is nil.

import (
    "context"
    "crypto/tls"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/access-gate/internal/store"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//   REDIS_HOST and REDIS_PORT: hostname and port of the Redis server
//   REDIS_ADDR: host:port shorthand (host/port win when both are set)
//   REDIS_PASSWORD: optional password
//   REDIS_DB: database number (default 0)
//   REDIS_TLS: enable TLS when "true" or "1"
// The returned client is nil if no server answers a ping within two seconds.
func NewRedisClient() *redis.Client {
    host := os.Getenv("REDIS_HOST")
    port := os.Getenv("REDIS_PORT")
    addr := os.Getenv("REDIS_ADDR")
    if host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    dbNum := 0
    if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
        if n, err := strconv.Atoi(dbStr); err == nil {
            dbNum = n
        }
    }
    var tlsConf *tls.Config
    if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      addr,
        Password:  os.Getenv("REDIS_PASSWORD"),
        DB:        dbNum,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}

// NewStore selects the backend named by cfg.StoreBackend.  rdb may be nil
// unless the redis backend is selected.
func NewStore(cfg Config, rdb *redis.Client) (store.Store, error) {
    switch cfg.StoreBackend {
    case BackendREST:
        if cfg.KVRestURL == "" || cfg.KVRestToken == "" {
            return nil, fmt.Errorf("store backend %q needs UPSTASH_REDIS_REST_URL and UPSTASH_REDIS_REST_TOKEN", cfg.StoreBackend)
        }
        return store.NewRESTStore(cfg.KVRestURL, cfg.KVRestToken, nil), nil
    case BackendRedis:
        if rdb == nil {
            return nil, fmt.Errorf("store backend %q selected but redis is unreachable", cfg.StoreBackend)
        }
        return store.NewRedisStore(rdb), nil
    case BackendMemory:
        return store.NewMemoryStore(), nil
    default:
        return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
    }
}
