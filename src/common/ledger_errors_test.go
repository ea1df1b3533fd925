package common

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestLedgerErrTypeNames(t *testing.T) {
	for i := range ledgerErrNames {
		errType := LedgerErrType(i)

		back, ok := LedgerErrTypeFromString(errType.String())
		if !ok {
			t.Fatalf("%s should parse", errType)
		}
		if back != errType {
			t.Fatalf("round trip of %s gave %s", errType, back)
		}
	}

	if _, ok := LedgerErrTypeFromString("Bogus"); ok {
		t.Fatalf("Bogus should not parse")
	}
}

func TestIsLedger(t *testing.T) {
	err := NewLedgerErr(NoCredit, "0xabc")

	if !IsLedger(err, NoCredit) {
		t.Fatalf("err should be NoCredit")
	}
	if IsLedger(err, ZeroPayment) {
		t.Fatalf("err should not be ZeroPayment")
	}
	if IsLedger(fmt.Errorf("NoCredit"), NoCredit) {
		t.Fatalf("plain errors are not ledger errors")
	}
	if err.Error() != "NoCredit: 0xabc" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if NewLedgerErr(NotOperational, "").Error() != "NotOperational" {
		t.Fatalf("subject-less errors print the bare type")
	}
}

func TestIsLedgerWrapped(t *testing.T) {
	err := errors.Wrap(NewLedgerErr(Unauthorized, "0x1"), "submit")

	if !IsLedger(err, Unauthorized) {
		t.Fatalf("wrapped err should be Unauthorized")
	}

	if !IsStore(errors.Wrap(NewStoreErr("Blocks", KeyNotFound, "1"), "get"), KeyNotFound) {
		t.Fatalf("wrapped err should be KeyNotFound")
	}
}
