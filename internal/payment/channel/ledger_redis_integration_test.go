//go:build integration

package channel_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"remitflow/internal/payment"
	"remitflow/internal/payment/channel"
	"remitflow/pkg/testutil/containers"
)

type RedisLedgerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	ledger *channel.RedisLedger
}

func TestRedisLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLedgerSuite))
}

func (s *RedisLedgerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.ledger = channel.NewRedisLedger(s.redis.Client, time.Hour)
}

func (s *RedisLedgerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestConcurrentClaims verifies SET NX lets exactly one claimant through.
func (s *RedisLedgerSuite) TestConcurrentClaims() {
	ctx := context.Background()
	const goroutines = 20
	var wg sync.WaitGroup
	var wins atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.ledger.Claim(ctx, "intent-1")
			s.NoError(err)
			if c.Won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}

// TestParkedOutcomeIsReplayedOnce verifies a parked outcome is handed to
// exactly one of the concurrent claimants and the claim is held again after.
func (s *RedisLedgerSuite) TestParkedOutcomeIsReplayedOnce() {
	ctx := context.Background()
	c, err := s.ledger.Claim(ctx, "intent-2")
	s.Require().NoError(err)
	s.Require().True(c.Won)

	parked := payment.Succeeded("REF-2", decimal.RequireFromString("12.50"), "USD")
	s.Require().NoError(s.ledger.Park(ctx, "intent-2", parked))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		replays []payment.Outcome
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.ledger.Claim(ctx, "intent-2")
			s.NoError(err)
			if c.Won {
				mu.Lock()
				replays = append(replays, *c.Pending)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Require().Len(replays, 1)
	s.Equal("REF-2", replays[0].Reference)
	s.True(parked.CapturedAmount.Equal(replays[0].CapturedAmount))

	c, err = s.ledger.Claim(ctx, "intent-2")
	s.Require().NoError(err)
	s.False(c.Won)
}

func (s *RedisLedgerSuite) TestParkAfterExpiryIsDropped() {
	ctx := context.Background()
	s.Require().NoError(s.ledger.Park(ctx, "intent-3", payment.Cancelled()))

	c, err := s.ledger.Claim(ctx, "intent-3")
	s.Require().NoError(err)
	s.True(c.Won)
	s.Nil(c.Pending)
}
