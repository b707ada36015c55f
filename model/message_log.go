package model

import (
	"encoding/json"
	"time"

	"github.com/dspconnect/core/urn"
)

type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

// Message is a persisted, append-only record of one protocol exchange
// against a process. fromState/toState bracket the state transition the
// message caused. A quiet self-loop replay appends no row.
type Message struct {
	Id        urn.MessageId
	ProcessId urn.ProcessId
	Direction Direction
	Kind      string
	FromState string
	ToState   string
	Payload   json.RawMessage
	Timestamp time.Time
	Protocol  string
}
