package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	cm "github.com/mosaicnetworks/surety/src/common"
	"github.com/sirupsen/logrus"
)

type statusRequest struct {
	key       RequestKey
	requester common.Address
	// responses keeps the voters of every status code in arrival order.
	responses map[StatusCode][]common.Address
	responded map[common.Address]bool
	finalized bool
	status    StatusCode
}

func newStatusRequest(key RequestKey, requester common.Address) *statusRequest {
	return &statusRequest{
		key:       key,
		requester: requester,
		responses: make(map[StatusCode][]common.Address),
		responded: make(map[common.Address]bool),
	}
}

// RequestInfo is a read-only copy of a status request.
type RequestInfo struct {
	Key       RequestKey
	Requester common.Address
	Responses map[StatusCode][]common.Address
	Finalized bool
	Status    StatusCode
}

func (r *statusRequest) info() RequestInfo {
	responses := make(map[StatusCode][]common.Address, len(r.responses))
	for code, voters := range r.responses {
		responses[code] = append([]common.Address(nil), voters...)
	}
	return RequestInfo{
		Key:       r.key,
		Requester: r.requester,
		Responses: responses,
		Finalized: r.finalized,
		Status:    r.status,
	}
}

// Submission reports what the ledger did with an oracle response.
type Submission struct {
	// Recorded is false for responses absorbed as duplicates or arriving after
	// finalization.
	Recorded bool
	// Finalized is true if the request is finalized after this response,
	// whether or not this response finalized it.
	Finalized bool
	// Status is the finalized status, when Finalized is set.
	Status StatusCode
}

// SubmitOracleResponse records the status reported by an oracle for a request.
// The oracle must hold index. One vote per oracle per request is counted, and
// responses to a finalized request are accepted without effect. The first
// status to gather ResponsesRequired votes finalizes the request, sets the
// flight status, and pays insurees out if it is LateAirline.
func (l *Ledger) SubmitOracleResponse(call Call, addr common.Address, index uint8, airline common.Address, code string, timestamp int64, status StatusCode) (Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.guard(call); err != nil {
		return Submission{}, err
	}

	o, ok := l.oracles[addr]
	if !ok {
		return Submission{}, cm.NewLedgerErr(cm.NotRegistered, addr.Hex())
	}

	if !o.holds(index) {
		return Submission{}, cm.NewLedgerErr(cm.IndexMismatch, addr.Hex())
	}

	if !status.Valid() {
		return Submission{}, cm.NewLedgerErr(cm.InvalidStatus, status.String())
	}

	key := RequestKey{
		Index:     index,
		Airline:   airline,
		Code:      code,
		Timestamp: timestamp,
	}

	req, ok := l.requests[key]
	if !ok {
		return Submission{}, cm.NewLedgerErr(cm.NoSuchRequest, key.String())
	}

	logger := l.logger.WithFields(logrus.Fields{
		"request": key.String(),
		"oracle":  addr.Hex(),
		"status":  status.String(),
	})

	if req.finalized {
		logger.Debug("SubmitOracleResponse after finalization")
		return Submission{Finalized: true, Status: req.status}, nil
	}

	if req.responded[addr] {
		logger.Debug("SubmitOracleResponse duplicate")
		return Submission{}, nil
	}

	req.responded[addr] = true
	req.responses[status] = append(req.responses[status], addr)

	l.emit(Event{
		Type:      OracleReported,
		Index:     index,
		Airline:   airline,
		Flight:    code,
		Timestamp: timestamp,
		Status:    status,
		Account:   addr,
	})

	if len(req.responses[status]) < l.params.ResponsesRequired {
		logger.WithField("votes", len(req.responses[status])).Debug("SubmitOracleResponse recorded")
		return Submission{Recorded: true}, nil
	}

	l.finalize(req, status)

	logger.Info("Flight status finalized")

	return Submission{Recorded: true, Finalized: true, Status: status}, nil
}

func (l *Ledger) finalize(req *statusRequest, status StatusCode) {
	req.finalized = true
	req.status = status

	fk := req.key.Flight()

	if f, ok := l.flights[fk]; ok {
		f.status = status
	}

	l.emit(Event{
		Type:      FlightStatusFinalized,
		Index:     req.key.Index,
		Airline:   req.key.Airline,
		Flight:    req.key.Code,
		Timestamp: req.key.Timestamp,
		Status:    status,
	})

	if status == LateAirline {
		l.creditInsurees(fk)
	}
}

// Request returns a copy of a status request.
func (l *Ledger) Request(key RequestKey) (RequestInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.requests[key]
	if !ok {
		return RequestInfo{}, false
	}
	return r.info(), true
}

// OpenRequests returns the keys of requests that did not finalize, in the
// order they were opened.
func (l *Ledger) OpenRequests() []RequestKey {
	l.mu.RLock()
	defer l.mu.RUnlock()

	res := []RequestKey{}
	for _, k := range l.requestOrder {
		if !l.requests[k].finalized {
			res = append(res, k)
		}
	}
	return res
}
