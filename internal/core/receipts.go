package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"raisecore/internal/blob"
	"raisecore/pkg/domain"
)

// Receipt captures the outcome of a successful state-changing operation for
// archival. Amounts are recorded in their native precision: Amount in deposit
// token units, ClaimAmount in claim token units.
type Receipt struct {
	Operation   string        `json:"operation"`
	Caller      string        `json:"caller"`
	Participant string        `json:"participant,omitempty"`
	Recipient   string        `json:"recipient,omitempty"`
	Amount      domain.Amount `json:"amount"`
	ClaimAmount domain.Amount `json:"claim_amount"`
	RaiseStatus RaiseStatus   `json:"raise_status"`
	RecordedAt  time.Time     `json:"recorded_at"`
}

// ReceiptArchive persists receipts durably. Implementations must tolerate
// being called once per operation; failures never roll the operation back.
type ReceiptArchive interface {
	Archive(ctx context.Context, receipt Receipt) error
}

// BlobReceiptArchive writes receipts as JSON objects into a blob store. Keys
// carry the operation, emission timestamp, and a process-local sequence so
// concurrent writers never collide on create-only stores.
type BlobReceiptArchive struct {
	store blob.Store
	seq   atomic.Uint64
	nowFn func() time.Time
}

// NewBlobReceiptArchive constructs an archive over the given blob store.
func NewBlobReceiptArchive(store blob.Store) *BlobReceiptArchive {
	return &BlobReceiptArchive{store: store, nowFn: time.Now}
}

// Archive serializes the receipt and stores it under a unique key.
func (a *BlobReceiptArchive) Archive(ctx context.Context, receipt Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("receipts/%s/%d-%06d.json", receipt.Operation, a.nowFn().UTC().UnixNano(), a.seq.Add(1))
	_, err = a.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"operation": receipt.Operation},
	})
	return err
}
