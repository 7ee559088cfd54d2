package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType is a typed string identifying the kind of a ledger row.
type TxType string

// The closed set of ledger row kinds.
const (
	TxTrade          TxType = "TRADE"
	TxTransfer       TxType = "TRANSFER"
	TxHedge          TxType = "HEDGE"
	TxFee            TxType = "FEE"
	TxReconciliation TxType = "RECONCILIATION"
	TxCostBasisReset TxType = "COST_BASIS_RESET"
)

// ParseTxType parses a string into a TxType.
func ParseTxType(s string) (TxType, error) {
	switch t := TxType(strings.ToUpper(s)); t {
	case TxTrade, TxTransfer, TxHedge, TxFee, TxReconciliation, TxCostBasisReset:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type: %q", s)
	}
}

// LedgerTransaction is one row of the ledger: a signed asset-quantity
// movement on one account.
//
// The sign of Quantity encodes direction. RECONCILIATION rows never carry a
// cost-basis effect, and COST_BASIS_RESET rows define a checkpoint lot state
// superseding earlier history for their (account, asset).
type LedgerTransaction struct {
	ID       string    `json:"id"`
	DateTime time.Time `json:"date_time"`

	AccountID string `json:"account_id"`
	AssetID   string `json:"asset_id"`
	Type      TxType `json:"tx_type"`

	Quantity Quantity `json:"quantity"`
	// UnitPrice is the execution price for TRADE/HEDGE/FEE rows and the
	// checkpoint unit cost for COST_BASIS_RESET rows. Zero means unpriced.
	UnitPrice decimal.Decimal `json:"unit_price"`

	Notes string `json:"notes,omitempty"`

	// TransferGroupID links the legs recognized as the matched sides of one
	// logical transfer. Separated marks a TRANSFER row as intentionally
	// non-transfer. Together they are the only persisted matcher state.
	TransferGroupID string `json:"transfer_group_id,omitempty"`
	Separated       bool   `json:"separated,omitempty"`

	ExternalReference string `json:"external_reference,omitempty"`
}

func newTx(at time.Time, account, asset string, typ TxType, quantity Quantity) LedgerTransaction {
	return LedgerTransaction{
		ID:        uuid.NewString(),
		DateTime:  at.UTC(),
		AccountID: account,
		AssetID:   asset,
		Type:      typ,
		Quantity:  quantity,
	}
}

// NewTrade creates a trade row. Positive quantity is a purchase, negative a
// disposal; unitPrice is the execution price per unit.
func NewTrade(at time.Time, account, asset string, quantity Quantity, unitPrice decimal.Decimal, notes string) LedgerTransaction {
	tx := newTx(at, account, asset, TxTrade, quantity)
	tx.UnitPrice = unitPrice
	tx.Notes = notes
	return tx
}

// NewTransfer creates one leg of an asset movement between accounts.
func NewTransfer(at time.Time, account, asset string, quantity Quantity, notes string) LedgerTransaction {
	tx := newTx(at, account, asset, TxTransfer, quantity)
	tx.Notes = notes
	return tx
}

// NewHedge creates a hedge position row.
func NewHedge(at time.Time, account, asset string, quantity Quantity, unitPrice decimal.Decimal, notes string) LedgerTransaction {
	tx := newTx(at, account, asset, TxHedge, quantity)
	tx.UnitPrice = unitPrice
	tx.Notes = notes
	return tx
}

// NewFee creates a fee row, usually a negative quantity of the paying asset.
func NewFee(at time.Time, account, asset string, quantity Quantity, notes string) LedgerTransaction {
	tx := newTx(at, account, asset, TxFee, quantity)
	tx.Notes = notes
	return tx
}

// NewReconciliation creates a basis-neutral balance adjustment row.
func NewReconciliation(at time.Time, account, asset string, delta Quantity, notes string) LedgerTransaction {
	tx := newTx(at, account, asset, TxReconciliation, delta)
	tx.Notes = notes
	return tx
}

// NewCostBasisReset creates a checkpoint row fixing the resting quantity and
// unit cost of a position at a point in time.
func NewCostBasisReset(at time.Time, account, asset string, quantity Quantity, unitCost decimal.Decimal, notes, externalRef string) LedgerTransaction {
	tx := newTx(at, account, asset, TxCostBasisReset, quantity)
	tx.UnitPrice = unitCost
	tx.Notes = notes
	tx.ExternalReference = externalRef
	return tx
}

// IsOpenTransferLeg reports whether the row is a TRANSFER leg not yet linked
// to a transfer group nor separated, i.e. still subject to diagnostics.
func (tx LedgerTransaction) IsOpenTransferLeg() bool {
	return tx.Type == TxTransfer && tx.TransferGroupID == "" && !tx.Separated
}

// compareChrono orders rows chronologically, with the stable, orderable id
// as tie-breaker so replays are deterministic.
func compareChrono(a, b LedgerTransaction) int {
	if c := a.DateTime.Compare(b.DateTime); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// ParseAsOf parses an operation timestamp in RFC 3339 format. The empty
// string resolves to the current time, so callers always get back the
// server-resolved instant actually used.
func ParseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, validationf("malformed as_of %q: not an RFC 3339 timestamp", s)
	}
	return at.UTC(), nil
}
