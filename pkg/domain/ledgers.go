package domain

import "context"

// AssetLedger is the external fungible-balance store holding the deposit
// currency. Implementations are synchronous and atomic with respect to core
// operations; any transfer error aborts the whole operation.
type AssetLedger interface {
	Decimals() uint8
	TransferFrom(ctx context.Context, from, to string, amount Amount) error
	BalanceOf(holder string) Amount
}

// ClaimLedger is the fungible claim-token store. The raise core is its sole
// issuer; Mint carries no transfer constraints. Decimals are fixed at
// ClaimTokenDecimals.
type ClaimLedger interface {
	Name() string
	Symbol() string
	Decimals() uint8
	Mint(ctx context.Context, to string, amount Amount) error
	BalanceOf(holder string) Amount
	TotalSupply() Amount
}
