package http

import (
	"encoding/json"
	"net/http"

	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

func (s *Server) handleTransferRequest(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleTransferRequest(r.Context(), raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := message.Encode(res.Ack)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

// tpRole resolves this connector's own stored role for the transfer named
// in the URL path - every TP handler but the opening TransferRequest needs
// it, since no role travels on the wire for Start/Suspension/Completion/
// Termination.
func (s *Server) tpRole(r *http.Request) (urn.ProcessId, model.Role, error) {
	pid, err := urn.ParseProcessId(pathPid(r))
	if err != nil {
		return urn.ProcessId{}, "", err
	}
	proc, err := s.Orchestrator.Stores.Transfers.GetById(r.Context(), pid)
	if err != nil {
		return urn.ProcessId{}, "", err
	}
	return pid, proc.Role, nil
}

func (s *Server) handleTransferStart(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	_, myRole, err := s.tpRole(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleTransferStart(r.Context(), myRole, raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleTransferSuspension(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	_, myRole, err := s.tpRole(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleTransferSuspension(r.Context(), myRole, raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleTransferCompletion(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	_, myRole, err := s.tpRole(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleTransferCompletion(r.Context(), myRole, raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleTransferTermination(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	_, myRole, err := s.tpRole(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.HandleTransferTermination(r.Context(), myRole, raw, bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

// rpcPeerBody is the shared body shape of every local setup-RPC call: the
// participant on the other end of the callback this connector dispatches
// to after applying its own local transition.
type rpcPeerBody struct {
	PeerParticipant string `json:"peerParticipant"`
}

func (s *Server) handleRpcTransferStart(w http.ResponseWriter, r *http.Request) {
	pid, myRole, peerParticipant, err := s.decodeRpc(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.RpcStart(r.Context(), myRole, pid, peerParticipant)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleRpcTransferSuspend(w http.ResponseWriter, r *http.Request) {
	pid, myRole, peerParticipant, err := s.decodeRpc(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.RpcSuspend(r.Context(), myRole, pid, peerParticipant)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleRpcTransferComplete(w http.ResponseWriter, r *http.Request) {
	pid, myRole, peerParticipant, err := s.decodeRpc(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.RpcComplete(r.Context(), myRole, pid, peerParticipant)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) handleRpcTransferTerminate(w http.ResponseWriter, r *http.Request) {
	pid, myRole, peerParticipant, err := s.decodeRpc(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.RpcTerminate(r.Context(), myRole, pid, peerParticipant)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}

func (s *Server) decodeRpc(r *http.Request) (urn.ProcessId, model.Role, urn.ParticipantId, error) {
	var in rpcPeerBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return urn.ProcessId{}, "", urn.ParticipantId{}, err
	}
	peerParticipant, err := urn.ParseParticipantId(in.PeerParticipant)
	if err != nil {
		return urn.ProcessId{}, "", urn.ParticipantId{}, err
	}
	pid, myRole, err := s.tpRole(r)
	if err != nil {
		return urn.ProcessId{}, "", urn.ParticipantId{}, err
	}
	return pid, myRole, peerParticipant, nil
}

func (s *Server) handleRpcRequestTransfer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProviderParticipant string       `json:"providerParticipant"`
		AgreementId         string       `json:"agreementId"`
		Format              model.Format `json:"format"`
		CallbackAddress     string       `json:"callbackAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err)
		return
	}
	providerParticipant, err := urn.ParseParticipantId(in.ProviderParticipant)
	if err != nil {
		writeError(w, err)
		return
	}
	agreementId, err := urn.ParseAgreementId(in.AgreementId)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.RequestTransfer(r.Context(), s.Resolver, providerParticipant, agreementId, in.Format, in.CallbackAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeAck(w, res.Ack, nil)
}
