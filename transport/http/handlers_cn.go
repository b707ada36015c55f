package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func (s *Server) writeAck(w http.ResponseWriter, ack message.DspMessage, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	body, encErr := message.Encode(ack)
	if encErr != nil {
		writeError(w, encErr)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleContractRequest(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleContractRequest(r.Context(), raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := message.Encode(res.Ack)
	if err != nil {
		writeError(w, err)
		return
	}
	var status = http.StatusCreated
	if pathPid(r) != "" {
		status = http.StatusOK
	}
	writeJSON(w, status, body)
}

func (s *Server) handleContractOffer(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleContractOffer(r.Context(), raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleContractAgreement(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleContractAgreement(r.Context(), raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleContractVerification(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleContractVerification(r.Context(), raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleContractFinalization(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleContractFinalization(r.Context(), raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

// handleContractTermination resolves this connector's own role in the named
// negotiation before applying it, since termination may be sent to either
// party and carries no role of its own on the wire.
func (s *Server) handleContractTermination(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pid, err := urn.ParseProcessId(pathPid(r))
	if err != nil {
		writeError(w, err)
		return
	}
	myRole, err := s.resolveCnRole(r, pid)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleContractTermination(r.Context(), myRole, raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) resolveCnRole(r *http.Request, pid urn.ProcessId) (model.Role, error) {
	proc, err := s.Orchestrator.Stores.Negotiations.GetById(r.Context(), pid)
	if err != nil {
		return "", err
	}
	if proc.ProviderPid != nil && proc.ProviderPid.String() == pid.String() {
		return model.RoleProvider, nil
	}
	return model.RoleConsumer, nil
}

// handleRpcStartNegotiation is the local operator surface for opening a
// negotiation against a named provider participant.
func (s *Server) handleRpcStartNegotiation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProviderParticipant string          `json:"providerParticipant"`
		Offer               json.RawMessage `json:"offer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err)
		return
	}
	participantId, err := urn.ParseParticipantId(in.ProviderParticipant)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.StartNegotiation(r.Context(), participantId, in.Offer)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}
