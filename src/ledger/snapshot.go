package ledger

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mosaicnetworks/surety/src/crypto"
	"github.com/ugorji/go/codec"
)

// The snapshot types mirror the ledger state with addresses and amounts
// encoded as strings. Collections are slices in a fixed order so that equal
// states always encode to the same bytes.

type paramsSnapshot struct {
	BootstrapAirlines int
	MinStake          string
	RegistrationFee   string
	PremiumCap        string
	IndexSpace        uint8
	ResponsesRequired int
	PayoutNumerator   int64
	PayoutDenominator int64
}

type airlineSnapshot struct {
	Address string
	Status  AirlineStatus
	Votes   []string
	Stake   string
}

type flightSnapshot struct {
	Airline   string
	Code      string
	Departure int64
	Status    StatusCode
}

type policySnapshot struct {
	Airline   string
	Code      string
	Passenger string
	Premium   string
	Credited  bool
}

type creditSnapshot struct {
	Passenger string
	Amount    string
}

type oracleSnapshot struct {
	Address string
	Indexes []uint8
	Stake   string
}

type responseSnapshot struct {
	Status  StatusCode
	Oracles []string
}

type requestSnapshot struct {
	Index     uint8
	Airline   string
	Code      string
	Timestamp int64
	Requester string
	Responses []responseSnapshot
	Finalized bool
	Status    StatusCode
}

type ledgerSnapshot struct {
	Params      paramsSnapshot
	Owner       string
	Operational bool
	Authorized  []string
	Airlines    []airlineSnapshot
	Flights     []flightSnapshot
	Policies    []policySnapshot
	Credits     []creditSnapshot
	Oracles     []oracleSnapshot
	Requests    []requestSnapshot
	Nonce       uint64
	Treasury    string
}

func snapshotHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

// Snapshot encodes the whole ledger state. Pending events and the Transferor
// are not part of it.
func (l *Ledger) Snapshot() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.snapshot()
}

// Hash returns the SHA256 of the snapshot.
func (l *Ledger) Hash() ([]byte, error) {
	snap, err := l.Snapshot()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(snap), nil
}

func (l *Ledger) snapshot() ([]byte, error) {
	s := ledgerSnapshot{
		Params: paramsSnapshot{
			BootstrapAirlines: l.params.BootstrapAirlines,
			MinStake:          l.params.MinStake.String(),
			RegistrationFee:   l.params.RegistrationFee.String(),
			PremiumCap:        l.params.PremiumCap.String(),
			IndexSpace:        l.params.IndexSpace,
			ResponsesRequired: l.params.ResponsesRequired,
			PayoutNumerator:   l.params.PayoutNumerator,
			PayoutDenominator: l.params.PayoutDenominator,
		},
		Owner:       l.owner.Hex(),
		Operational: l.operational,
		Authorized:  []string{},
		Airlines:    []airlineSnapshot{},
		Flights:     []flightSnapshot{},
		Policies:    []policySnapshot{},
		Credits:     []creditSnapshot{},
		Oracles:     []oracleSnapshot{},
		Requests:    []requestSnapshot{},
		Nonce:       l.nonce,
		Treasury:    l.treasury.String(),
	}

	for _, addr := range sortedKeys(l.authorized) {
		s.Authorized = append(s.Authorized, addr.Hex())
	}

	for _, addr := range sortedKeys(l.airlines) {
		a := l.airlines[addr]
		s.Airlines = append(s.Airlines, airlineSnapshot{
			Address: addr.Hex(),
			Status:  a.status,
			Votes:   hexAddresses(a.voters()),
			Stake:   a.stake.String(),
		})
	}

	for _, k := range l.flightOrder {
		f := l.flights[k]
		s.Flights = append(s.Flights, flightSnapshot{
			Airline:   k.Airline.Hex(),
			Code:      k.Code,
			Departure: f.departure,
			Status:    f.status,
		})
		for _, p := range l.policies[k] {
			s.Policies = append(s.Policies, policySnapshot{
				Airline:   k.Airline.Hex(),
				Code:      k.Code,
				Passenger: p.passenger.Hex(),
				Premium:   p.premium.String(),
				Credited:  p.credited,
			})
		}
	}

	for _, addr := range sortedKeys(l.credits) {
		s.Credits = append(s.Credits, creditSnapshot{
			Passenger: addr.Hex(),
			Amount:    l.credits[addr].String(),
		})
	}

	for _, addr := range sortedKeys(l.oracles) {
		o := l.oracles[addr]
		s.Oracles = append(s.Oracles, oracleSnapshot{
			Address: addr.Hex(),
			Indexes: append([]uint8(nil), o.indexes[:]...),
			Stake:   o.stake.String(),
		})
	}

	for _, k := range l.requestOrder {
		r := l.requests[k]
		rs := requestSnapshot{
			Index:     k.Index,
			Airline:   k.Airline.Hex(),
			Code:      k.Code,
			Timestamp: k.Timestamp,
			Requester: r.requester.Hex(),
			Responses: []responseSnapshot{},
			Finalized: r.finalized,
			Status:    r.status,
		}
		for _, code := range StatusCodes {
			if voters, ok := r.responses[code]; ok {
				rs.Responses = append(rs.Responses, responseSnapshot{
					Status:  code,
					Oracles: hexAddresses(voters),
				})
			}
		}
		s.Requests = append(s.Requests, rs)
	}

	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, snapshotHandle())

	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Restore replaces the ledger state with a snapshot produced by Snapshot. The
// ledger is left untouched if the snapshot cannot be decoded.
func (l *Ledger) Restore(data []byte) error {
	var s ledgerSnapshot

	dec := codec.NewDecoder(bytes.NewBuffer(data), snapshotHandle())
	if err := dec.Decode(&s); err != nil {
		return err
	}

	r, err := s.restore()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.params = r.params
	l.owner = r.owner
	l.operational = r.operational
	l.authorized = r.authorized
	l.airlines = r.airlines
	l.fundedCount = r.fundedCount
	l.flights = r.flights
	l.flightOrder = r.flightOrder
	l.policies = r.policies
	l.credits = r.credits
	l.oracles = r.oracles
	l.requests = r.requests
	l.requestOrder = r.requestOrder
	l.nonce = r.nonce
	l.treasury = r.treasury
	l.events = nil

	l.logger.WithField("nonce", l.nonce).Debug("Restore")

	return nil
}

// restore decodes a snapshot into a detached Ledger holding only state.
func (s *ledgerSnapshot) restore() (*Ledger, error) {
	var err error

	r := &Ledger{
		operational:  s.Operational,
		authorized:   make(map[common.Address]bool),
		airlines:     make(map[common.Address]*airline),
		flights:      make(map[FlightKey]*flight),
		policies:     make(map[FlightKey][]*policy),
		credits:      make(map[common.Address]*big.Int),
		oracles:      make(map[common.Address]*oracle),
		requests:     make(map[RequestKey]*statusRequest),
		flightOrder:  []FlightKey{},
		requestOrder: []RequestKey{},
		nonce:        s.Nonce,
	}

	r.params = Params{
		BootstrapAirlines: s.Params.BootstrapAirlines,
		IndexSpace:        s.Params.IndexSpace,
		ResponsesRequired: s.Params.ResponsesRequired,
		PayoutNumerator:   s.Params.PayoutNumerator,
		PayoutDenominator: s.Params.PayoutDenominator,
	}
	if r.params.MinStake, err = ParseAmount(s.Params.MinStake); err != nil {
		return nil, err
	}
	if r.params.RegistrationFee, err = ParseAmount(s.Params.RegistrationFee); err != nil {
		return nil, err
	}
	if r.params.PremiumCap, err = ParseAmount(s.Params.PremiumCap); err != nil {
		return nil, err
	}
	if err := r.params.Validate(); err != nil {
		return nil, err
	}

	if r.owner, err = ParseAddress(s.Owner); err != nil {
		return nil, err
	}

	if r.treasury, err = ParseAmount(s.Treasury); err != nil {
		return nil, err
	}

	for _, h := range s.Authorized {
		addr, err := ParseAddress(h)
		if err != nil {
			return nil, err
		}
		r.authorized[addr] = true
	}

	for _, as := range s.Airlines {
		addr, err := ParseAddress(as.Address)
		if err != nil {
			return nil, err
		}
		a := newAirline(addr, as.Status)
		if a.stake, err = ParseAmount(as.Stake); err != nil {
			return nil, err
		}
		for _, h := range as.Votes {
			v, err := ParseAddress(h)
			if err != nil {
				return nil, err
			}
			a.votes[v] = true
		}
		if a.status == Funded {
			r.fundedCount++
		}
		r.airlines[addr] = a
	}

	for _, fs := range s.Flights {
		addr, err := ParseAddress(fs.Airline)
		if err != nil {
			return nil, err
		}
		k := NewFlightKey(addr, fs.Code)
		r.flights[k] = &flight{
			key:       k,
			departure: fs.Departure,
			status:    fs.Status,
		}
		r.flightOrder = append(r.flightOrder, k)
	}

	for _, ps := range s.Policies {
		addr, err := ParseAddress(ps.Airline)
		if err != nil {
			return nil, err
		}
		passenger, err := ParseAddress(ps.Passenger)
		if err != nil {
			return nil, err
		}
		premium, err := ParseAmount(ps.Premium)
		if err != nil {
			return nil, err
		}
		k := NewFlightKey(addr, ps.Code)
		r.policies[k] = append(r.policies[k], &policy{
			flight:    k,
			passenger: passenger,
			premium:   premium,
			credited:  ps.Credited,
		})
	}

	for _, cs := range s.Credits {
		passenger, err := ParseAddress(cs.Passenger)
		if err != nil {
			return nil, err
		}
		if r.credits[passenger], err = ParseAmount(cs.Amount); err != nil {
			return nil, err
		}
	}

	for _, os := range s.Oracles {
		addr, err := ParseAddress(os.Address)
		if err != nil {
			return nil, err
		}
		if len(os.Indexes) != oracleIndexes {
			return nil, fmt.Errorf("oracle %s has %d indexes", os.Address, len(os.Indexes))
		}
		o := &oracle{address: addr}
		copy(o.indexes[:], os.Indexes)
		if o.stake, err = ParseAmount(os.Stake); err != nil {
			return nil, err
		}
		r.oracles[addr] = o
	}

	for _, rs := range s.Requests {
		addr, err := ParseAddress(rs.Airline)
		if err != nil {
			return nil, err
		}
		requester, err := ParseAddress(rs.Requester)
		if err != nil {
			return nil, err
		}
		k := RequestKey{
			Index:     rs.Index,
			Airline:   addr,
			Code:      rs.Code,
			Timestamp: rs.Timestamp,
		}
		req := newStatusRequest(k, requester)
		req.finalized = rs.Finalized
		req.status = rs.Status
		for _, resp := range rs.Responses {
			for _, h := range resp.Oracles {
				o, err := ParseAddress(h)
				if err != nil {
					return nil, err
				}
				req.responses[resp.Status] = append(req.responses[resp.Status], o)
				req.responded[o] = true
			}
		}
		r.requests[k] = req
		r.requestOrder = append(r.requestOrder, k)
	}

	return r, nil
}

func sortedKeys[V any](m map[common.Address]V) []common.Address {
	res := make([]common.Address, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sortAddresses(res)
	return res
}

func hexAddresses(addrs []common.Address) []string {
	res := make([]string, 0, len(addrs))
	for _, a := range addrs {
		res = append(res, a.Hex())
	}
	return res
}

// ParseAddress parses a hex encoded address, with or without 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a decimal count of wei.
func ParseAmount(s string) (*big.Int, error) {
	res, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return res, nil
}
