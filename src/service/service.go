package service

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/mosaicnetworks/surety/src/ledger"
	"github.com/mosaicnetworks/surety/src/node"
	"github.com/mosaicnetworks/surety/src/proxy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SubmitTimeout bounds the time a request waits for its transaction to be
// committed.
const SubmitTimeout = 10 * time.Second

// Service exposes the ledger over a JSON HTTP API.
type Service struct {
	bindAddress string
	gateway     common.Address

	node   *node.Node
	ledger *ledger.Ledger

	router *mux.Router
	server *http.Server

	logger *logrus.Entry
}

// NewService creates a Service. Transactions triggered through the API are
// submitted on behalf of gateway.
func NewService(bindAddress string,
	gateway common.Address,
	n *node.Node,
	l *ledger.Ledger,
	logger *logrus.Entry) *Service {

	service := Service{
		bindAddress: bindAddress,
		gateway:     gateway,
		node:        n,
		ledger:      l,
		router:      mux.NewRouter().StrictSlash(true),
		logger:      logger.WithField("component", "service"),
	}

	service.registerHandlers()

	service.server = &http.Server{
		Addr:         bindAddress,
		Handler:      service.router,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Surety API handlers")

	s.router.Use(s.corsMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/stats", s.GetStats).Methods(http.MethodGet)
	s.router.HandleFunc("/block/{index:[0-9]+}", s.GetBlock).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.node.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.router.HandleFunc("/api", s.GetAPI).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/operational", s.GetOperational).Methods(http.MethodGet)
	api.HandleFunc("/flights", s.GetFlights).Methods(http.MethodGet)
	api.HandleFunc("/flights/{airline}/{code}", s.GetFlight).Methods(http.MethodGet)
	api.HandleFunc("/flights/{airline}/{code}/insurees/{passenger}", s.GetInsuree).Methods(http.MethodGet)
	api.HandleFunc("/flights/{airline}/{code}/status", s.PostFetchFlightStatus).Methods(http.MethodPost)
	api.HandleFunc("/airlines/{address}", s.GetAirline).Methods(http.MethodGet)
	api.HandleFunc("/credits/{passenger}", s.GetCredits).Methods(http.MethodGet)
	api.HandleFunc("/oracles/{address}", s.GetOracle).Methods(http.MethodGet)
}

// Handler returns the router serving the API.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Surety API")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Shutdown gracefully stops the server.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.WithFields(logrus.Fields{
			"method":        r.Method,
			"uri":           r.RequestURI,
			"response_code": sw.statusCode,
			"duration":      time.Since(start),
		}).Debug("api")
	})
}

// GetAPI ...
func (s *Service) GetAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "An API for use with your Dapp!",
	})
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()
	stats["treasury"] = formatEther(s.ledger.Treasury())
	stats["funded_airlines"] = strconv.Itoa(s.ledger.FundedAirlineCount())
	stats["open_requests"] = strconv.Itoa(len(s.ledger.OpenRequests()))

	writeJSON(w, http.StatusOK, stats)
}

// GetBlock ...
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := mux.Vars(r)["index"]

	blockIndex, err := strconv.Atoi(param)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	block, err := s.node.GetBlock(blockIndex)
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.logger.WithError(err).Errorf("Retrieving block %d", blockIndex)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, block)
}

// GetOperational ...
func (s *Service) GetOperational(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"operational": s.ledger.IsOperational(),
	})
}

// GetFlights returns the flight catalog as a list of [code, departure] pairs.
func (s *Service) GetFlights(w http.ResponseWriter, r *http.Request) {
	flights := [][]interface{}{}
	for _, f := range s.ledger.Flights() {
		flights = append(flights, []interface{}{f.Code, f.Departure})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flights": flights,
	})
}

// FlightResponse ...
type FlightResponse struct {
	Airline    string `json:"airline"`
	Code       string `json:"code"`
	Departure  int64  `json:"departure"`
	Status     string `json:"status"`
	StatusCode uint8  `json:"status_code"`
	Insurees   int    `json:"insurees"`
}

// GetFlight ...
func (s *Service) GetFlight(w http.ResponseWriter, r *http.Request) {
	key, ok := s.flightKey(w, r)
	if !ok {
		return
	}

	f, ok := s.ledger.Flight(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, cm.NewLedgerErr(cm.NoSuchFlight, key.String()))
		return
	}

	writeJSON(w, http.StatusOK, FlightResponse{
		Airline:    f.Airline.Hex(),
		Code:       f.Code,
		Departure:  f.Departure,
		Status:     f.Status.String(),
		StatusCode: uint8(f.Status),
		Insurees:   len(s.ledger.Policies(key)),
	})
}

// InsureeResponse ...
type InsureeResponse struct {
	Flight    string `json:"flight"`
	Passenger string `json:"passenger"`
	Insured   bool   `json:"insured"`
	Premium   string `json:"premium,omitempty"`
	Credited  bool   `json:"credited"`
}

// GetInsuree ...
func (s *Service) GetInsuree(w http.ResponseWriter, r *http.Request) {
	key, ok := s.flightKey(w, r)
	if !ok {
		return
	}

	passenger, ok := s.address(w, mux.Vars(r)["passenger"])
	if !ok {
		return
	}

	res := InsureeResponse{
		Flight:    key.String(),
		Passenger: passenger.Hex(),
	}

	if p, ok := s.ledger.Policy(key, passenger); ok {
		res.Insured = true
		res.Premium = formatEther(p.Premium)
		res.Credited = p.Credited
	}

	writeJSON(w, http.StatusOK, res)
}

// AirlineResponse ...
type AirlineResponse struct {
	Address string   `json:"address"`
	Status  string   `json:"status"`
	Funded  bool     `json:"funded"`
	Votes   []string `json:"votes"`
}

// GetAirline ...
func (s *Service) GetAirline(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	votes := []string{}
	for _, v := range s.ledger.Votes(addr) {
		votes = append(votes, v.Hex())
	}

	writeJSON(w, http.StatusOK, AirlineResponse{
		Address: addr.Hex(),
		Status:  s.ledger.AirlineStatus(addr).String(),
		Funded:  s.ledger.IsAirline(addr),
		Votes:   votes,
	})
}

// CreditsResponse ...
type CreditsResponse struct {
	Passenger string `json:"passenger"`
	Credits   string `json:"credits"`
	Wei       string `json:"wei"`
}

// GetCredits ...
func (s *Service) GetCredits(w http.ResponseWriter, r *http.Request) {
	passenger, ok := s.address(w, mux.Vars(r)["passenger"])
	if !ok {
		return
	}

	credits := s.ledger.Credits(passenger)

	writeJSON(w, http.StatusOK, CreditsResponse{
		Passenger: passenger.Hex(),
		Credits:   formatEther(credits),
		Wei:       credits.String(),
	})
}

// OracleResponse ...
type OracleResponse struct {
	Address string  `json:"address"`
	Indexes []uint8 `json:"indexes"`
}

// GetOracle ...
func (s *Service) GetOracle(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	indexes, err := s.ledger.GetMyIndexes(addr)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OracleResponse{
		Address: addr.Hex(),
		Indexes: indexes[:],
	})
}

// FetchStatusRequest is the optional body of a flight status request. The
// requester defaults to the gateway and the timestamp to the departure of the
// flight.
type FetchStatusRequest struct {
	Requester string `json:"requester"`
	Timestamp int64  `json:"timestamp"`
}

// FetchStatusResponse ...
type FetchStatusResponse struct {
	Index     uint8  `json:"index"`
	Flight    string `json:"flight"`
	Timestamp int64  `json:"timestamp"`
}

// PostFetchFlightStatus asks the oracles for the status of a flight.
func (s *Service) PostFetchFlightStatus(w http.ResponseWriter, r *http.Request) {
	key, ok := s.flightKey(w, r)
	if !ok {
		return
	}

	var req FetchStatusRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	requester := s.gateway
	if req.Requester != "" {
		if requester, ok = s.address(w, req.Requester); !ok {
			return
		}
	}

	timestamp := req.Timestamp
	if timestamp == 0 {
		f, ok := s.ledger.Flight(key)
		if !ok {
			s.writeError(w, http.StatusNotFound, cm.NewLedgerErr(cm.NoSuchFlight, key.String()))
			return
		}
		timestamp = f.Departure
	}

	ctx, cancel := context.WithTimeout(r.Context(), SubmitTimeout)
	defer cancel()

	tx := proxy.NewFetchFlightStatusTx(s.gateway, requester, key.Airline, key.Code, timestamp)

	receipt, err := s.node.SubmitTx(ctx, tx)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	if err := receipt.Error(); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	index, err := strconv.Atoi(receipt.Result)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, FetchStatusResponse{
		Index:     uint8(index),
		Flight:    key.String(),
		Timestamp: timestamp,
	})
}

func (s *Service) flightKey(w http.ResponseWriter, r *http.Request) (ledger.FlightKey, bool) {
	vars := mux.Vars(r)

	airline, ok := s.address(w, vars["airline"])
	if !ok {
		return ledger.FlightKey{}, false
	}

	return ledger.NewFlightKey(airline, vars["code"]), true
}

func (s *Service) address(w http.ResponseWriter, param string) (common.Address, bool) {
	addr, err := ledger.ParseAddress(param)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return common.Address{}, false
	}
	return addr, true
}

// ErrorResponse ...
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func (s *Service) writeError(w http.ResponseWriter, code int, err error) {
	res := ErrorResponse{Error: err.Error()}
	if le, ok := err.(cm.LedgerErr); ok {
		res.Type = le.Type().String()
	}
	writeJSON(w, code, res)
}

func (s *Service) writeLedgerError(w http.ResponseWriter, err error) {
	code := http.StatusConflict

	switch {
	case cm.IsLedger(err, cm.NotRegistered),
		cm.IsLedger(err, cm.NoSuchFlight),
		cm.IsLedger(err, cm.NoSuchRequest):
		code = http.StatusNotFound
	case cm.IsLedger(err, cm.Unauthorized):
		code = http.StatusForbidden
	case cm.IsLedger(err, cm.NotOperational):
		code = http.StatusServiceUnavailable
	}

	s.writeError(w, code, err)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// formatEther renders an amount of wei as a decimal amount of ether.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).String()
}
