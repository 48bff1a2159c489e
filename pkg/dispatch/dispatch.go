// Package dispatch routes messages between agents. Each registered agent
// gets a buffered inbox channel; the dispatcher fans messages in from a
// shared queue and out to the addressee.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"shellcraft/pkg/logx"
	"shellcraft/pkg/proto"
)

const (
	queueSize = 64
	inboxSize = 16
)

// Receiver is implemented by agents that accept dispatched messages.
type Receiver interface {
	// AgentID returns the routing address for this agent.
	AgentID() string
	// Inbox returns the channel the dispatcher delivers to.
	Inbox() chan<- *proto.AgentMsg
}

// Dispatcher owns the shared queue and the routing table.
type Dispatcher struct {
	logger    *logx.Logger
	queue     chan *proto.AgentMsg
	receivers map[string]Receiver
	mu        sync.RWMutex
	running   bool
}

// NewDispatcher creates an idle dispatcher. Call Start to begin routing.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		logger:    logx.NewLogger("dispatch"),
		queue:     make(chan *proto.AgentMsg, queueSize),
		receivers: make(map[string]Receiver),
	}
}

// Attach registers an agent for delivery. Attaching a duplicate ID is an
// error.
func (d *Dispatcher) Attach(r Receiver) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := r.AgentID()
	if _, exists := d.receivers[id]; exists {
		return fmt.Errorf("agent %q already attached", id)
	}
	d.receivers[id] = r
	d.logger.Debug("attached agent %s", id)
	return nil
}

// Detach removes an agent from the routing table. Queued messages for it
// are dropped at delivery time.
func (d *Dispatcher) Detach(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.receivers, agentID)
}

// Send enqueues a message for routing. Fails when the queue is full rather
// than blocking the sender.
func (d *Dispatcher) Send(msg *proto.AgentMsg) error {
	if msg == nil {
		return fmt.Errorf("cannot dispatch nil message")
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return fmt.Errorf("dispatch queue full, dropping %s from %s", msg.Type, msg.FromAgent)
	}
}

// Start routes messages until ctx is cancelled. Blocks; run in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return
		case msg := <-d.queue:
			d.deliver(msg)
		}
	}
}

func (d *Dispatcher) deliver(msg *proto.AgentMsg) {
	d.mu.RLock()
	r, ok := d.receivers[msg.ToAgent]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("no receiver for %s, dropping %s message %s", msg.ToAgent, msg.Type, msg.ID)
		return
	}
	select {
	case r.Inbox() <- msg:
		d.logger.Debug("delivered %s %s -> %s", msg.Type, msg.FromAgent, msg.ToAgent)
	default:
		d.logger.Warn("inbox full for %s, dropping message %s", msg.ToAgent, msg.ID)
	}
}

// ChannelReceiver is a ready-made Receiver backed by a buffered channel.
type ChannelReceiver struct {
	id    string
	inbox chan *proto.AgentMsg
}

// NewChannelReceiver creates a receiver with the default inbox size.
func NewChannelReceiver(id string) *ChannelReceiver {
	return &ChannelReceiver{id: id, inbox: make(chan *proto.AgentMsg, inboxSize)}
}

func (r *ChannelReceiver) AgentID() string               { return r.id }
func (r *ChannelReceiver) Inbox() chan<- *proto.AgentMsg { return r.inbox }

// Recv blocks until a message arrives or ctx is cancelled.
func (r *ChannelReceiver) Recv(ctx context.Context) (*proto.AgentMsg, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-r.inbox:
		return msg, nil
	}
}
