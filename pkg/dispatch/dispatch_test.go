package dispatch

import (
	"context"
	"testing"
	"time"

	"shellcraft/pkg/proto"
)

func TestRouteBetweenAgents(t *testing.T) {
	d := NewDispatcher()
	planner := NewChannelReceiver("planner")
	worker := NewChannelReceiver("worker")
	if err := d.Attach(planner); err != nil {
		t.Fatal(err)
	}
	if err := d.Attach(worker); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	msg := proto.NewAgentMsg(proto.MsgTypeTASK, "planner", "worker")
	msg.SetPayload(proto.KeyGoal, "add a healthcheck endpoint")
	if err := d.Send(msg); err != nil {
		t.Fatal(err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer recvCancel()
	got, err := worker.Recv(recvCtx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if got.ID != msg.ID {
		t.Errorf("got message %s, want %s", got.ID, msg.ID)
	}
	if goal := got.PayloadString(proto.KeyGoal); goal != "add a healthcheck endpoint" {
		t.Errorf("goal = %q", goal)
	}
}

func TestDuplicateAttachRejected(t *testing.T) {
	d := NewDispatcher()
	if err := d.Attach(NewChannelReceiver("worker")); err != nil {
		t.Fatal(err)
	}
	if err := d.Attach(NewChannelReceiver("worker")); err == nil {
		t.Error("duplicate agent ID must be rejected")
	}
}

func TestUnknownReceiverDropped(t *testing.T) {
	d := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	msg := proto.NewAgentMsg(proto.MsgTypeRESULT, "worker", "nobody")
	if err := d.Send(msg); err != nil {
		t.Fatalf("Send should accept the message: %v", err)
	}
	// Delivery drops it without blocking the dispatcher.
	again := proto.NewAgentMsg(proto.MsgTypeRESULT, "worker", "nobody")
	if err := d.Send(again); err != nil {
		t.Errorf("dispatcher stalled: %v", err)
	}
}

func TestReplyLinksParent(t *testing.T) {
	task := proto.NewAgentMsg(proto.MsgTypeTASK, "planner", "worker")
	reply := task.Reply(proto.MsgTypeRESULT, "worker")
	if reply.ParentMsgID != task.ID {
		t.Errorf("ParentMsgID = %q, want %q", reply.ParentMsgID, task.ID)
	}
	if reply.FromAgent != "worker" || reply.ToAgent != "planner" {
		t.Errorf("reply addressing = %s -> %s", reply.FromAgent, reply.ToAgent)
	}
}
