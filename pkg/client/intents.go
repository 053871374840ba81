package client

import (
	"context"
	"strings"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Asset is one entry of the 1Click token list
type Asset struct {
	AssetID  string
	Symbol   string
	Decimals uint8
	PriceUSD float64
}

// Quote is the part of a 1Click quote the swap flow needs
type Quote struct {
	DepositAddress     string  `json:"depositAddress"`
	DepositMemo        string  `json:"depositMemo,omitempty"`
	AmountInFormatted  string  `json:"amountInFormatted"`
	AmountOutFormatted string  `json:"amountOutFormatted"`
	TimeEstimate       float64 `json:"timeEstimate"`
}

// ExecutionStatus is one observation of a 1Click swap
type ExecutionStatus struct {
	Status             string
	AmountOutFormatted string
	DestinationTxs     []string
	OriginTxs          []string
}

// Asset resolves ref against the token list
func (c *OneClickClient) Asset(ctx context.Context, ref types.TokenRef) (Asset, error) {
	token, err := c.AssetFor(ctx, ref)
	if err != nil {
		return Asset{}, err
	}
	return Asset{
		AssetID:  token.GetAssetId(),
		Symbol:   token.GetSymbol(),
		Decimals: uint8(token.GetDecimals()),
		PriceUSD: float64(token.GetPrice()),
	}, nil
}

// Quote requests a quote and keeps the deposit details
func (c *OneClickClient) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	resp, err := c.GetQuote(ctx, params)
	if err != nil {
		return nil, err
	}

	details := resp.GetQuote()
	q := &Quote{
		DepositAddress:     details.GetDepositAddress(),
		AmountInFormatted:  details.GetAmountInFormatted(),
		AmountOutFormatted: details.GetAmountOutFormatted(),
		TimeEstimate:       float64(details.GetTimeEstimate()),
	}
	if details.HasDepositMemo() {
		q.DepositMemo = details.GetDepositMemo()
	}
	return q, nil
}

// Status reports the execution status of the swap behind depositAddress
func (c *OneClickClient) Status(ctx context.Context, depositAddress string) (*ExecutionStatus, error) {
	resp, err := c.GetSwapStatus(ctx, depositAddress)
	if err != nil {
		return nil, err
	}

	details := resp.GetSwapDetails()
	status := &ExecutionStatus{Status: strings.ToUpper(string(resp.GetStatus()))}
	if details.HasAmountOutFormatted() {
		status.AmountOutFormatted = details.GetAmountOutFormatted()
	}
	for _, tx := range details.GetDestinationChainTxHashes() {
		status.DestinationTxs = append(status.DestinationTxs, tx.GetHash())
	}
	for _, tx := range details.GetOriginChainTxHashes() {
		status.OriginTxs = append(status.OriginTxs, tx.GetHash())
	}
	return status, nil
}
