// =================================
// File: internal/session/session.go
// =================================

// Package session owns the durable record of one bundling run: the generated
// participant wallets, funding/recovery totals and the full history of
// recovery attempts. Every completed run leaves a ledger file sufficient to
// drive a future, independent recovery attempt.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

// Status of a session as a whole.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFunded    Status = "funded"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// WalletStatus of an individual participant wallet after recovery.
type WalletStatus string

const (
	WalletPending             WalletStatus = "pending"
	WalletRecovered           WalletStatus = "recovered"
	WalletInsufficientBalance WalletStatus = "insufficient_balance"
	WalletFailed              WalletStatus = "failed"
)

// WalletRecord persists everything needed to sweep a wallet later, including
// its private key. Ledger files therefore hold secrets and stay local.
type WalletRecord struct {
	PublicKey       string       `json:"publicKey"`
	PrivateKey      string       `json:"privateKey"`
	InitialBalance  uint64       `json:"initialBalance"`
	FinalBalance    uint64       `json:"finalBalance"`
	RecoveredAmount uint64       `json:"recoveredAmount"`
	Status          WalletStatus `json:"status"`
}

// Totals are the session's financial bookkeeping in lamports.
type Totals struct {
	Distributed uint64 `json:"distributed"`
	Recovered   uint64 `json:"recovered"`
	Lost        uint64 `json:"lost"`
}

// RecoveryAttempt is one entry in the append-only recovery history.
type RecoveryAttempt struct {
	Timestamp time.Time `json:"timestamp"`
	Recovered uint64    `json:"recovered"`
	Swept     int       `json:"swept"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// Session is one end-to-end bundling run. Sessions are independent and never
// share participant wallets.
type Session struct {
	ID           string            `json:"sessionId"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Network      string            `json:"network"`
	Authority    string            `json:"authority"`
	Distributor  string            `json:"distributor"`
	Mint         string            `json:"mint,omitempty"`
	BundleID     string            `json:"bundleId,omitempty"`
	TipSignature string            `json:"tipSignature,omitempty"`
	Degraded     bool              `json:"degraded,omitempty"`
	Status       Status            `json:"status"`
	Wallets      []WalletRecord    `json:"wallets"`
	Totals       Totals            `json:"totals"`
	Attempts     []RecoveryAttempt `json:"recoveryAttempts"`
}

// New creates a pending session for the given participant set.
func New(network, authority, distributor string, participants []*wallet.Wallet) *Session {
	now := time.Now().UTC()
	records := make([]WalletRecord, 0, len(participants))
	for _, w := range participants {
		records = append(records, WalletRecord{
			PublicKey:  w.PublicKey.String(),
			PrivateKey: w.ExportPrivateKey(),
			Status:     WalletPending,
		})
	}
	return &Session{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Network:     network,
		Authority:   authority,
		Distributor: distributor,
		Status:      StatusPending,
		Wallets:     records,
	}
}

// ParticipantWallets reconstructs the keypairs from the persisted records.
func (s *Session) ParticipantWallets() ([]*wallet.Wallet, error) {
	wallets := make([]*wallet.Wallet, 0, len(s.Wallets))
	for i, record := range s.Wallets {
		w, err := wallet.NewWallet(record.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("session %s wallet %d (%s): %w", s.ID, i, record.PublicKey, err)
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// SetStatus advances the session lifecycle and bumps the update time.
func (s *Session) SetStatus(status Status) {
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
}

// WalletRecordFor returns a pointer into Wallets for the given public key.
func (s *Session) WalletRecordFor(publicKey string) *WalletRecord {
	for i := range s.Wallets {
		if s.Wallets[i].PublicKey == publicKey {
			return &s.Wallets[i]
		}
	}
	return nil
}

// RecordAttempt appends one recovery attempt and recomputes the totals from
// the per-wallet records so that re-running recovery never double-counts.
func (s *Session) RecordAttempt(attempt RecoveryAttempt) {
	s.Attempts = append(s.Attempts, attempt)

	var recovered uint64
	for _, w := range s.Wallets {
		recovered += w.RecoveredAmount
	}
	s.Totals.Recovered = recovered
	if s.Totals.Distributed > recovered {
		s.Totals.Lost = s.Totals.Distributed - recovered
	} else {
		s.Totals.Lost = 0
	}
	s.UpdatedAt = time.Now().UTC()
}
