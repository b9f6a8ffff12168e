package testfixtures

import (
	"context"
	"sync"
)

// PublishedEvent 记录一次发布
type PublishedEvent struct {
	Topic   string
	Payload interface{}
}

// Publisher 记录所有发布的事件，Err 非空时发布失败
type Publisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Err    error
}

func (p *Publisher) Publish(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, PublishedEvent{Topic: topic, Payload: payload})
	return nil
}

func (p *Publisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

// Topic 返回某主题下的事件
func (p *Publisher) Topic(topic string) []PublishedEvent {
	var out []PublishedEvent
	for _, e := range p.Events() {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func (p *Publisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

// Penalty 一次扣分调用
type Penalty struct {
	WorkerID int64
	Amount   int
	Reason   string
}

// Gamification 记录扣分与倍率重置
type Gamification struct {
	mu        sync.Mutex
	penalties []Penalty
	resets    []int64
	Err       error
}

func (g *Gamification) ApplyPenalty(_ context.Context, workerID int64, amount int, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	g.penalties = append(g.penalties, Penalty{WorkerID: workerID, Amount: amount, Reason: reason})
	return nil
}

func (g *Gamification) ResetMultiplier(_ context.Context, workerID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	g.resets = append(g.resets, workerID)
	return nil
}

func (g *Gamification) Penalties() []Penalty {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Penalty(nil), g.penalties...)
}

func (g *Gamification) Resets() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.resets...)
}
