package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

func TestCache(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Cache Suite")
}

var _ = ginkgo.Describe("MemoryCache", func() {
	var (
		ctx   context.Context
		store *MemoryCache
		clock time.Time
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		store = NewMemoryCache()
		clock = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return clock }
	})

	ginkgo.It("round-trips a value", func() {
		gomega.Expect(store.Set(ctx, "k", "v", 0)).To(gomega.Succeed())

		val, err := store.Get(ctx, "k")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(val).To(gomega.Equal("v"))
	})

	ginkgo.It("misses on an absent key", func() {
		_, err := store.Get(ctx, "nope")
		gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
	})

	ginkgo.It("expires entries after their ttl", func() {
		gomega.Expect(store.Set(ctx, "k", "v", time.Minute)).To(gomega.Succeed())

		clock = clock.Add(59 * time.Second)
		_, err := store.Get(ctx, "k")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		clock = clock.Add(2 * time.Second)
		_, err = store.Get(ctx, "k")
		gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
	})

	ginkgo.It("keeps zero-ttl entries forever", func() {
		gomega.Expect(store.Set(ctx, "k", "v", 0)).To(gomega.Succeed())

		clock = clock.Add(1000 * time.Hour)
		_, err := store.Get(ctx, "k")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
	})

	ginkgo.It("deletes", func() {
		gomega.Expect(store.Set(ctx, "k", "v", 0)).To(gomega.Succeed())
		gomega.Expect(store.Delete(ctx, "k")).To(gomega.Succeed())

		_, err := store.Get(ctx, "k")
		gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
	})

	ginkgo.Describe("GetDel", func() {
		ginkgo.It("returns the value exactly once", func() {
			gomega.Expect(store.Set(ctx, "k", "v", time.Minute)).To(gomega.Succeed())

			val, err := store.GetDel(ctx, "k")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(val).To(gomega.Equal("v"))

			_, err = store.GetDel(ctx, "k")
			gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
		})

		ginkgo.It("treats an expired entry as a miss", func() {
			gomega.Expect(store.Set(ctx, "k", "v", time.Minute)).To(gomega.Succeed())

			clock = clock.Add(2 * time.Minute)
			_, err := store.GetDel(ctx, "k")
			gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
		})
	})
})

var _ = ginkgo.Describe("RedisCache", func() {
	var (
		ctx    context.Context
		server *miniredis.Miniredis
		store  *RedisCache
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()

		var err error
		server, err = miniredis.Run()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		store = NewRedisCache(client, "")
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	ginkgo.It("round-trips a value", func() {
		gomega.Expect(store.Set(ctx, "k", "v", time.Minute)).To(gomega.Succeed())

		val, err := store.Get(ctx, "k")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(val).To(gomega.Equal("v"))
	})

	ginkgo.It("maps redis.Nil to a cache miss", func() {
		_, err := store.Get(ctx, "nope")
		gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
	})

	ginkgo.It("expires entries after their ttl", func() {
		gomega.Expect(store.Set(ctx, "k", "v", time.Minute)).To(gomega.Succeed())

		server.FastForward(2 * time.Minute)

		_, err := store.Get(ctx, "k")
		gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
	})

	ginkgo.It("consumes a key atomically with GetDel", func() {
		gomega.Expect(store.Set(ctx, "k", "v", time.Minute)).To(gomega.Succeed())

		val, err := store.GetDel(ctx, "k")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(val).To(gomega.Equal("v"))

		_, err = store.GetDel(ctx, "k")
		gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
	})

	ginkgo.It("namespaces keys with the configured prefix", func() {
		prefixed := NewRedisCache(redis.NewClient(&redis.Options{Addr: server.Addr()}), "orgmgmt")

		gomega.Expect(prefixed.Set(ctx, "k", "v", time.Minute)).To(gomega.Succeed())
		gomega.Expect(server.Exists("orgmgmt:k")).To(gomega.BeTrue())

		_, err := store.Get(ctx, "k")
		gomega.Expect(err).To(gomega.Equal(ErrCacheMiss))
	})
})
