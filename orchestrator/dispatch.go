// Package orchestrator wires the validator, state machines and event bus
// into the single pipeline spec.md §4.6 describes: validate, persist,
// dataplane pre-hook, apply the transition, peer-dispatch (RPC only),
// dataplane post-hook, broadcast, respond.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/peerauth"
	"github.com/dspconnect/core/urn"
)

// PeerDispatcher sends a locally-produced acknowledgement envelope to the
// peer's own callback address, classifying the outcome the way spec.md
// §4.6 names: PeerUnreachable (no response), PeerInternalError (5xx),
// PeerResponseMalformed, or PeerProtocolError (4xx carrying a typed error
// envelope). Grounded on the event bus's own http.NewRequestWithContext
// POST pattern, reused here for the other direction of traffic.
type PeerDispatcher struct {
	Client *http.Client
	Issuer *peerauth.Issuer
	Log    *logrus.Logger
}

func NewPeerDispatcher(client *http.Client, issuer *peerauth.Issuer, log *logrus.Logger) *PeerDispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PeerDispatcher{Client: client, Issuer: issuer, Log: log}
}

// Dispatch POSTs msg's canonical envelope to callbackAddress, bearing a
// token scoped to (participantId, processId) when an Issuer is configured.
// On a 2xx response it decodes and returns the peer's own acknowledgement
// envelope, so the caller can correlate a peer-assigned pid back into the
// local process (spec.md §4.2 step 2, "first reply fills the missing side
// atomically").
func (d *PeerDispatcher) Dispatch(ctx context.Context, callbackAddress string, participantId urn.ParticipantId, processId urn.ProcessId, msg message.DspMessage) (message.DspMessage, error) {
	body, err := message.Encode(msg)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindMalformedMessage, err, "encoding outbound %s", msg.Kind())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackAddress, bytes.NewReader(body))
	if err != nil {
		return nil, dsperr.Wrap(dsperr.KindPeerUnreachable, err, "building request to %s", callbackAddress)
	}
	req.Header.Set("Content-Type", "application/json")

	if d.Issuer != nil {
		token, err := d.Issuer.Issue(participantId, &processId, 5*time.Minute)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindBackend, err, "minting outbound bearer token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		d.Log.WithError(err).WithField("callback", callbackAddress).Warn("orchestrator: peer unreachable")
		return nil, dsperr.Wrap(dsperr.KindPeerUnreachable, err, "dispatching %s to %s", msg.Kind(), callbackAddress)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(respBody) == 0 {
			return nil, nil
		}
		ack, err := message.Decode(respBody)
		if err != nil {
			return nil, dsperr.Wrap(dsperr.KindPeerResponseMalformed, err, "decoding peer acknowledgement")
		}
		return ack, nil
	case resp.StatusCode >= 500:
		return nil, dsperr.New(dsperr.KindPeerInternalError, fmt.Sprintf("peer returned %d dispatching %s", resp.StatusCode, msg.Kind()))
	case readErr != nil:
		return nil, dsperr.Wrap(dsperr.KindPeerResponseMalformed, readErr, "reading peer response body")
	default:
		var envelope struct {
			Type string `json:"@type"`
		}
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return nil, dsperr.Wrap(dsperr.KindPeerResponseMalformed, err, "peer response is not a recognizable envelope")
		}
		if envelope.Type == "" {
			return nil, dsperr.New(dsperr.KindPeerResponseMalformed, "peer error response carries no @type")
		}
		return nil, dsperr.New(dsperr.KindPeerProtocolError, fmt.Sprintf("peer returned %d with a typed error envelope", resp.StatusCode))
	}
}
