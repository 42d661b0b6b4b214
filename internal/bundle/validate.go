// =================================
// File: internal/bundle/validate.go
// =================================
package bundle

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-bundler/internal/jito"
)

var (
	ErrEmptyBundle        = errors.New("bundle has no transactions")
	ErrUnsignedTx         = errors.New("bundle contains an unsigned transaction")
	ErrDuplicateSignature = errors.New("bundle contains duplicate transaction signatures")
)

// Validate runs the pre-submission checks: empty and oversized bundles,
// unsigned transactions and duplicated signatures are all rejected before any
// network call. A tampered bundle never reaches the relay.
func Validate(b *Bundle) error {
	if b == nil || len(b.Transactions) == 0 {
		return ErrEmptyBundle
	}
	// плюс tip-транзакция, добавляемая при отправке
	if len(b.Transactions)+1 > jito.MaxBundleTransactions {
		return fmt.Errorf("%w: %d transactions with tip, limit is %d",
			ErrBundleTooLarge, len(b.Transactions)+1, jito.MaxBundleTransactions)
	}

	seen := make(map[solana.Signature]int, len(b.Transactions))
	for i, tx := range b.Transactions {
		if tx == nil || len(tx.Signatures) == 0 {
			return fmt.Errorf("%w: transaction %d", ErrUnsignedTx, i)
		}
		for _, sig := range tx.Signatures {
			if sig.IsZero() {
				return fmt.Errorf("%w: transaction %d has a zero signature", ErrUnsignedTx, i)
			}
		}
		sig := tx.Signatures[0]
		if prev, dup := seen[sig]; dup {
			return fmt.Errorf("%w: transactions %d and %d", ErrDuplicateSignature, prev, i)
		}
		seen[sig] = i
	}
	return nil
}
