// Package randompkg provides functionality for generating random ledger items in tests.
package randompkg

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Intn is a shortcut for generating a random integer between 0 and max using crypto/rand.
func Intn(max int) int64 {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(err)
	}

	return nBig.Int64()
}

// String generates a random string of length n.
func String(n int) string {
	var sb strings.Builder

	k := len(alphabet)

	for i := 0; i < n; i++ {
		c := alphabet[Intn(k)]

		_ = sb.WriteByte(c) // The returned err is always nil.
	}

	return sb.String()
}

// OwnerID generates a random positive owner id.
func OwnerID() int64 {
	return Intn(1_000_000) + 1
}

// AccountKind picks a random account kind.
func AccountKind() domain.AccountKind {
	return domain.AccountKinds[Intn(len(domain.AccountKinds))]
}

// MoneyAmountBetween generates a random amount of money between min and max with two decimals.
func MoneyAmountBetween(min, max int64) decimal.Decimal {
	cents := min*100 + Intn(int((max-min)*100)+1)
	return decimal.New(cents, -2)
}
