package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// reply is the wire form a remote stage worker answers with.
type reply struct {
	Output
	Error string `json:"error,omitempty"`
}

// NatsAgent forwards invocations to a remote stage worker over NATS
// request/reply.
type NatsAgent struct {
	nc      *nats.Conn
	subject string
}

func NewNatsAgent(nc *nats.Conn, subject string) *NatsAgent {
	return &NatsAgent{nc: nc, subject: subject}
}

func (a *NatsAgent) Invoke(ctx context.Context, in Input) (Output, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return Output{}, fmt.Errorf("encode stage input: %w", err)
	}

	msg, err := a.nc.RequestWithContext(ctx, a.subject, data)
	if err != nil {
		return Output{}, fmt.Errorf("request %s: %w", a.subject, err)
	}

	var r reply
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		return Output{}, fmt.Errorf("decode reply from %s: %w", a.subject, err)
	}
	if r.Error != "" {
		return Output{}, errors.New(r.Error)
	}
	return r.Output, nil
}

// Serve answers requests on subject with agent. Workers sharing queue split
// the load.
func Serve(nc *nats.Conn, subject, queue string, agent Agent) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		var r reply
		var in Input
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			r.Error = fmt.Sprintf("decode stage input: %v", err)
		} else if out, err := agent.Invoke(context.Background(), in); err != nil {
			r.Error = err.Error()
		} else {
			r.Output = out
		}
		data, err := json.Marshal(r)
		if err != nil {
			data, _ = json.Marshal(reply{Error: err.Error()})
		}
		_ = msg.Respond(data)
	})
}
