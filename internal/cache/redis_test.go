package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisCacheTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	cache  Cache
}

func (s *RedisCacheTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})

	c, err := NewRedis(&Config{RedisClient: s.client})
	s.Require().NoError(err)
	s.cache = c
}

func (s *RedisCacheTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisCacheTestSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheTestSuite))
}

func (s *RedisCacheTestSuite) TestMiss() {
	_, err := s.cache.Get(context.Background(), "absent")
	s.ErrorIs(err, ErrMiss)
}

func (s *RedisCacheTestSuite) TestSetGetWithPrefix() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "roles:v:u", "a,b", time.Minute))

	val, err := s.cache.Get(ctx, "roles:v:u")
	s.Require().NoError(err)
	s.Equal("a,b", val)
	s.True(s.mr.Exists("cache:roles:v:u"))
}

func (s *RedisCacheTestSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "k", "v", time.Minute))

	s.mr.FastForward(2 * time.Minute)

	_, err := s.cache.Get(ctx, "k")
	s.ErrorIs(err, ErrMiss)
}

func (s *RedisCacheTestSuite) TestDel() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "a", "1", 0))
	s.Require().NoError(s.cache.Set(ctx, "b", "2", 0))

	n, err := s.cache.Del(ctx, "a", "b", "c")
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = s.cache.Del(ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisCacheTestSuite) TestNewRedisValidation() {
	_, err := NewRedis(nil)
	s.Error(err)

	_, err = NewRedis(&Config{})
	s.Error(err)
}
