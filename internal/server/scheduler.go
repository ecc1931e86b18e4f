package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/pipewise/pipewise/internal/agent"
	"github.com/pipewise/pipewise/internal/store"
)

// Scheduler fires enabled agents on their cron spec. A redis SetNX lock
// keeps replicas from running the same agent twice in one window.
type Scheduler struct {
	Store    *store.Store
	Pipeline *agent.Pipeline
	Rdb      *redis.Client
	Stop     chan struct{}
	Interval time.Duration
	Logger   *log.Logger
}

func NewScheduler(st *store.Store, pipe *agent.Pipeline, rdb *redis.Client) *Scheduler {
	return &Scheduler{
		Store:    st,
		Pipeline: pipe,
		Rdb:      rdb,
		Stop:     make(chan struct{}),
		Interval: time.Minute,
		Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.Interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	agents, err := s.Store.ListEnabledAgents(ctx)
	if err != nil {
		s.Logger.Printf("list agents: %v", err)
		return
	}
	for _, a := range agents {
		t, err := agent.ParseType(a.AgentType)
		if err != nil {
			continue
		}
		last, _ := s.Store.LatestExecutionTime(ctx, a.UserID, a.AgentType, a.Platform)
		if !isDue(a.ScheduleCron, last) {
			continue
		}

		// Distributed lock to avoid duplicate runs across replicas.
		if s.Rdb != nil {
			lockKey := fmt.Sprintf("sched:lock:%s", a.ID)
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		go func(a store.AgentRecord, t agent.Type) {
			runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			res, err := s.Pipeline.Run(runCtx, a.UserID, t, agent.Request{
				Platform:      a.Platform,
				EnableActions: a.EnableActions,
			})
			if err != nil {
				s.Logger.Printf("scheduled run %s/%s failed: %v", a.AgentType, a.Platform, err)
				return
			}
			s.Logger.Printf("scheduled run %s/%s analyzed %d records (%s)", a.AgentType, a.Platform, res.RecordsAnalyzed, res.Status)
		}(a, t)
	}
}

// isDue determines if an agent with cronSpec should run now based on
// the last run time. Supports "@daily", "@hourly", and standard 5-field
// cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Invalid spec behaves like @daily.
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
