package workers

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/cache"
	"github.com/yoockh/yoocv/internal/services"
)

const (
	DefaultStream = "pipeline:tasks"
	DefaultGroup  = "pipeline-workers"

	defaultTaskTimeout = 5 * time.Minute
	defaultReclaimIdle = 15 * time.Second
)

// PipelineWorkerPool consumes pipeline tasks from a Redis stream consumer
// group. A per-document lease keeps two workers off the same document.
// Entries stay pending until their task has run; a reclaimer claims entries
// idle for ReclaimIdle, which retries tasks that met a held lease or whose
// worker died.
type PipelineWorkerPool struct {
	Redis      *redis.Client
	Pipeline   services.PipelineService
	Lease      cache.Lease
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	TaskTimeout    time.Duration
	LeaseTTL       time.Duration
	ReclaimIdle    time.Duration

	wg sync.WaitGroup
}

func (p *PipelineWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Pipeline == nil {
		return errors.New("PipelineWorkerPool missing dependency: Redis/Pipeline must be set")
	}
	p.defaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runConsumer(ctx, consumer)
		}()
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runReclaimer(ctx, p.ConsumerPrefix+"-reclaim")
	}()
	p.Logger.WithFields(logrus.Fields{
		"stream":  p.Stream,
		"group":   p.Group,
		"workers": p.NumWorkers,
	}).Info("pipeline workers started")
	return nil
}

// Wait blocks until every consumer has returned after ctx is cancelled.
func (p *PipelineWorkerPool) Wait() { p.wg.Wait() }

func (p *PipelineWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 4
	}
	if p.TaskTimeout <= 0 {
		p.TaskTimeout = defaultTaskTimeout
	}
	if p.LeaseTTL <= p.TaskTimeout {
		p.LeaseTTL = p.TaskTimeout + 30*time.Second
	}
	if p.ReclaimIdle <= 0 {
		p.ReclaimIdle = defaultReclaimIdle
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func (p *PipelineWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
			}
		}
	}
}

func (p *PipelineWorkerPool) runReclaimer(ctx context.Context, consumer string) {
	t := time.NewTicker(p.ReclaimIdle / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.reclaim(ctx, consumer)
		}
	}
}

// reclaim claims every pending entry idle for at least ReclaimIdle and
// handles it again.
func (p *PipelineWorkerPool) reclaim(ctx context.Context, consumer string) {
	start := "0-0"
	for ctx.Err() == nil {
		msgs, next, err := p.Redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   p.Stream,
			Group:    p.Group,
			MinIdle:  p.ReclaimIdle,
			Start:    start,
			Count:    10,
			Consumer: consumer,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				p.Logger.WithError(err).WithField("consumer", consumer).Warn("xautoclaim failed")
			}
			return
		}
		for _, msg := range msgs {
			p.Logger.WithField("redis_id", msg.ID).Info("reclaimed pending task")
			p.handleMsg(ctx, msg)
		}
		if next == "0-0" || next == "" {
			return
		}
		start = next
	}
}

func (p *PipelineWorkerPool) ack(ctx context.Context, id string) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.Redis.XAck(actx, p.Stream, p.Group, id).Err(); err != nil {
		p.Logger.WithError(err).WithField("redis_id", id).Warn("xack failed")
	}
}

// handleMsg acks the entry once its task has run or is found malformed. A
// task whose document lease is held stays pending for the reclaimer.
func (p *PipelineWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	task := services.Task{
		Kind:       services.TaskKind(getStr("kind")),
		DocumentID: getStr("document_id"),
		UserID:     getStr("user_id"),
		JobID:      getStr("job_id"),
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":    msg.ID,
		"kind":        task.Kind,
		"document_id": task.DocumentID,
	})

	if err := task.Validate(); err != nil {
		log.WithError(err).Warn("dropping malformed task")
		p.ack(ctx, msg.ID)
		return
	}

	if p.Lease != nil {
		token, ok, err := p.Lease.Acquire(ctx, "doc:"+task.DocumentID, p.LeaseTTL)
		switch {
		case err != nil:
			log.WithError(err).Warn("lease unavailable, running without it")
		case !ok:
			log.Info("document already being processed, leaving task pending")
			return
		default:
			defer func() {
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				if _, err := p.Lease.Release(rctx, "doc:"+task.DocumentID, token); err != nil {
					log.WithError(err).Warn("lease release failed")
				}
			}()
		}
	}

	tctx, cancel := context.WithTimeout(ctx, p.TaskTimeout)
	defer cancel()

	start := time.Now()
	p.Pipeline.Run(tctx, task)
	// ack before the deferred lease release so a reclaimer cannot rerun it
	p.ack(ctx, msg.ID)
	log.WithField("elapsed_ms", time.Since(start).Milliseconds()).Info("task handled")
}

// RedisQueue enqueues tasks on the stream the worker pool reads.
type RedisQueue struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewRedisQueue(rdb *redis.Client, stream string) *RedisQueue {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisQueue{rdb: rdb, stream: stream, maxLen: 10000}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task services.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":        string(task.Kind),
			"document_id": task.DocumentID,
			"user_id":     task.UserID,
			"job_id":      task.JobID,
		},
	}).Err()
}
