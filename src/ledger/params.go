package ledger

import (
	"fmt"
	"math/big"
)

// Params groups the constants of the insurance rules.
type Params struct {
	// BootstrapAirlines is the number of funded airlines under which new
	// airlines are admitted without a vote.
	BootstrapAirlines int

	// MinStake is the collateral an airline must stake to become Funded.
	MinStake *big.Int

	// RegistrationFee is the stake an oracle pays to register.
	RegistrationFee *big.Int

	// PremiumCap is the largest premium a passenger can pay for one flight.
	PremiumCap *big.Int

	// IndexSpace is the size of the oracle index space [0, IndexSpace).
	IndexSpace uint8

	// ResponsesRequired is the number of matching oracle responses that
	// finalizes a status request.
	ResponsesRequired int

	// PayoutNumerator and PayoutDenominator define the payout ratio applied to
	// premiums when a flight is late because of the airline.
	PayoutNumerator   int64
	PayoutDenominator int64
}

// DefaultParams returns the standard rules: 4 bootstrap airlines, 10 ether
// stake, 1 ether oracle fee and premium cap, 10 indexes, 3 responses, 3/2
// payout.
func DefaultParams() Params {
	return Params{
		BootstrapAirlines: 4,
		MinStake:          Ether(10),
		RegistrationFee:   Ether(1),
		PremiumCap:        Ether(1),
		IndexSpace:        10,
		ResponsesRequired: 3,
		PayoutNumerator:   3,
		PayoutDenominator: 2,
	}
}

// Validate checks that the parameters describe a usable ledger.
func (p Params) Validate() error {
	switch {
	case p.BootstrapAirlines < 1:
		return fmt.Errorf("bootstrap airlines must be positive, got %d", p.BootstrapAirlines)
	case p.MinStake == nil || p.MinStake.Sign() <= 0:
		return fmt.Errorf("minimum stake must be positive")
	case p.RegistrationFee == nil || p.RegistrationFee.Sign() < 0:
		return fmt.Errorf("registration fee must not be negative")
	case p.PremiumCap == nil || p.PremiumCap.Sign() <= 0:
		return fmt.Errorf("premium cap must be positive")
	case p.IndexSpace < oracleIndexes:
		return fmt.Errorf("index space must hold at least %d indexes, got %d", oracleIndexes, p.IndexSpace)
	case p.ResponsesRequired < 1:
		return fmt.Errorf("responses required must be positive, got %d", p.ResponsesRequired)
	case p.PayoutNumerator <= 0 || p.PayoutDenominator <= 0:
		return fmt.Errorf("payout ratio must be positive, got %d/%d", p.PayoutNumerator, p.PayoutDenominator)
	}
	return nil
}

// Payout computes the credit owed for a premium. It multiplies before dividing
// and rounds up, so the credit is never below the exact value.
func (p Params) Payout(premium *big.Int) *big.Int {
	den := big.NewInt(p.PayoutDenominator)

	res := new(big.Int).Mul(premium, big.NewInt(p.PayoutNumerator))
	res.Add(res, den)
	res.Sub(res, big.NewInt(1))

	return res.Quo(res, den)
}
