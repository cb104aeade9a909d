package main

import (
	"encoding/json"
	"fmt"

	"relayrpc/rpc"
	"relayrpc/runner"
)

// serverHandlers are the methods this demo's server registers, exercising
// the success path, the RemoteException path, and RetryWhenOnline's
// latest-writer-wins backlog behavior end to end.
func serverHandlers() []runner.Handler {
	return []runner.Handler{
		runner.HandlerFunc(addNumbers),
		runner.HandlerFunc(divideNumbers),
		runner.HandlerFunc(sayHello),
		runner.HandlerFunc(heartbeat),
	}
}

func addNumbers(cmd *rpc.RpcCommand) (json.RawMessage, bool, error) {
	if cmd.MethodName != "AddNumbers" {
		return nil, false, nil
	}
	a, b, err := twoInts(cmd)
	if err != nil {
		return nil, true, err
	}
	out, _ := json.Marshal(a + b)
	return out, true, nil
}

func divideNumbers(cmd *rpc.RpcCommand) (json.RawMessage, bool, error) {
	if cmd.MethodName != "DivideNumbers" {
		return nil, false, nil
	}
	a, b, err := twoInts(cmd)
	if err != nil {
		return nil, true, err
	}
	if b == 0 {
		return nil, true, fmt.Errorf("division by zero")
	}
	out, _ := json.Marshal(a / b)
	return out, true, nil
}

func sayHello(cmd *rpc.RpcCommand) (json.RawMessage, bool, error) {
	if cmd.MethodName != "SayHello" {
		return nil, false, nil
	}
	if len(cmd.MethodParameters) != 1 {
		return nil, true, fmt.Errorf("SayHello takes exactly one name")
	}
	var name string
	if err := json.Unmarshal(cmd.MethodParameters[0], &name); err != nil {
		return nil, true, err
	}
	out, _ := json.Marshal("Hello, " + name + "!")
	return out, true, nil
}

// heartbeat acknowledges a liveness ping. Clients send these with
// RetryWhenOnline, so a client that falls offline and reconnects delivers
// the heartbeat that was in flight when it went offline plus its most
// recent one, never the stale ones queued in between.
func heartbeat(cmd *rpc.RpcCommand) (json.RawMessage, bool, error) {
	if cmd.MethodName != "Heartbeat" {
		return nil, false, nil
	}
	out, _ := json.Marshal("ack")
	return out, true, nil
}

func twoInts(cmd *rpc.RpcCommand) (int, int, error) {
	if len(cmd.MethodParameters) != 2 {
		return 0, 0, fmt.Errorf("expected two parameters, got %d", len(cmd.MethodParameters))
	}
	var a, b int
	if err := json.Unmarshal(cmd.MethodParameters[0], &a); err != nil {
		return 0, 0, err
	}
	if err := json.Unmarshal(cmd.MethodParameters[1], &b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// clientHandlers are the methods this demo's client registers, so the
// server can push a notification down to it without the client having
// asked for one first (spec §4's other call direction).
func clientHandlers() []runner.Handler {
	return []runner.Handler{
		runner.HandlerFunc(notify),
	}
}

func notify(cmd *rpc.RpcCommand) (json.RawMessage, bool, error) {
	if cmd.MethodName != "Notify" {
		return nil, false, nil
	}
	var message string
	if len(cmd.MethodParameters) == 1 {
		json.Unmarshal(cmd.MethodParameters[0], &message)
	}
	fmt.Printf("relaydemo: server says: %s\n", message)
	out, _ := json.Marshal("received")
	return out, true, nil
}
