package dataplane

import (
	"io"

	"github.com/dspconnect/core/model"
)

// SignalStream is the minimal shape a gRPC-generated streaming client
// satisfies for out-of-process data-plane peers: Recv returns the next
// SignalResponse or an error, io.EOF on clean stream closure. Mirrors
// pm.Driver_TransactionsClient from the teacher's materialize adapter.
type SignalStream interface {
	Recv() (*SignalResponse, error)
}

// SignalResponse carries a DataAddress update or an error detail from an
// out-of-process data-plane peer back to the orchestrator.
type SignalResponse struct {
	ProcessId   string
	DataAddress *model.DataAddress
	Error       string
}

// SignalEnvelope is the channel-oriented wrapper of SignalResponse, pairing
// the message with any transport-level error the read loop hit.
type SignalEnvelope struct {
	*SignalResponse
	Err error
}

// SignalChannel spawns a goroutine that receives from stream and forwards
// each message into the returned channel, closing it after the first read
// error. Mirrors materialize/adapter.go's TransactionResponseChannel: the
// channel, not the raw stream, is what callers select on so an in-process
// adapter and a real gRPC client look identical to them.
func SignalChannel(stream SignalStream) <-chan SignalEnvelope {
	var ch = make(chan SignalEnvelope, 4)
	go func() {
		for {
			var m, err = stream.Recv()
			if err == nil {
				ch <- SignalEnvelope{SignalResponse: m}
				continue
			}
			if err != io.EOF {
				ch <- SignalEnvelope{Err: err}
			}
			close(ch)
			return
		}
	}()
	return ch
}

// RecvSignal reads one signal from ch, destructuring it into its parts and
// returning an explicit io.EOF once the channel is closed.
func RecvSignal(ch <-chan SignalEnvelope, block bool) (*SignalResponse, error) {
	var rx SignalEnvelope
	var ok bool

	if block {
		rx, ok = <-ch
	} else {
		select {
		case rx, ok = <-ch:
		default:
			ok = true
		}
	}

	if !ok {
		return nil, io.EOF
	} else if rx.Err != nil {
		return nil, rx.Err
	}
	return rx.SignalResponse, nil
}
