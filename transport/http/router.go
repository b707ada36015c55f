package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dspconnect/core/dataservice"
	"github.com/dspconnect/core/orchestrator"
)

// Server is the connector's wire-protocol and operator RPC surface,
// grounded on the gorilla/mux router the authentication server routes
// with. One Server exposes both the inbound DSP callback paths (driven by
// peers) and the local setup-RPC paths (driven by this connector's own
// operators and data-plane integration).
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Resolver     dataservice.Resolver
	router       *mux.Router
}

func NewServer(o *orchestrator.Orchestrator, resolver dataservice.Resolver) *Server {
	s := &Server{Orchestrator: o, Resolver: resolver, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/negotiations/request", s.handleContractRequest).Methods(http.MethodPost)
	r.HandleFunc("/negotiations/{pid}/request", s.handleContractRequest).Methods(http.MethodPost)
	r.HandleFunc("/negotiations/{pid}/offers", s.handleContractOffer).Methods(http.MethodPost)
	r.HandleFunc("/negotiations/{pid}/agreement", s.handleContractAgreement).Methods(http.MethodPost)
	r.HandleFunc("/negotiations/{pid}/agreement/verification", s.handleContractVerification).Methods(http.MethodPost)
	r.HandleFunc("/negotiations/{pid}/events", s.handleContractFinalization).Methods(http.MethodPost)
	r.HandleFunc("/negotiations/{pid}/termination", s.handleContractTermination).Methods(http.MethodPost)

	r.HandleFunc("/transfers/request", s.handleTransferRequest).Methods(http.MethodPost)
	r.HandleFunc("/transfers/{pid}/start", s.handleTransferStart).Methods(http.MethodPost)
	r.HandleFunc("/transfers/{pid}/suspension", s.handleTransferSuspension).Methods(http.MethodPost)
	r.HandleFunc("/transfers/{pid}/completion", s.handleTransferCompletion).Methods(http.MethodPost)
	r.HandleFunc("/transfers/{pid}/termination", s.handleTransferTermination).Methods(http.MethodPost)

	r.HandleFunc("/rpc/negotiations/start", s.handleRpcStartNegotiation).Methods(http.MethodPost)
	r.HandleFunc("/rpc/transfers/request", s.handleRpcRequestTransfer).Methods(http.MethodPost)
	r.HandleFunc("/rpc/transfers/{pid}/start", s.handleRpcTransferStart).Methods(http.MethodPost)
	r.HandleFunc("/rpc/transfers/{pid}/suspension", s.handleRpcTransferSuspend).Methods(http.MethodPost)
	r.HandleFunc("/rpc/transfers/{pid}/completion", s.handleRpcTransferComplete).Methods(http.MethodPost)
	r.HandleFunc("/rpc/transfers/{pid}/termination", s.handleRpcTransferTerminate).Methods(http.MethodPost)
}

func pathPid(r *http.Request) string {
	return mux.Vars(r)["pid"]
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
