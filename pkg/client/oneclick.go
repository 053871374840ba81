package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// DefaultBaseURL is the public 1Click endpoint
const DefaultBaseURL = "https://1click.chaindefuser.com"

const tokenCacheTTL = 5 * time.Minute

// Blockchain names used by the 1Click token list
var chainToBlockchain = map[types.ChainID]string{
	types.Ethereum:  "eth",
	types.Optimism:  "op",
	types.BSC:       "bsc",
	types.Polygon:   "pol",
	types.Base:      "base",
	types.Arbitrum:  "arb",
	types.Avalanche: "avax",
	types.Bitcoin:   "btc",
	types.Near:      "near",
	types.Solana:    "sol",
}

// Native placeholders for tokens listed without a contract
var nativeAddress = map[types.ChainFamily]string{
	types.FamilyEVM:     types.NativeEVMAddress,
	types.FamilyBitcoin: "BTC",
	types.FamilyNear:    "wrap.near",
	types.FamilySolana:  "So11111111111111111111111111111111111111112",
}

// Blockchain returns the 1Click blockchain name of chain
func Blockchain(chain types.ChainID) (string, bool) {
	name, ok := chainToBlockchain[chain]
	return name, ok
}

// ChainFromBlockchain maps a 1Click blockchain name back to a ChainID
func ChainFromBlockchain(name string) (types.ChainID, bool) {
	name = strings.ToLower(name)
	for chain, n := range chainToBlockchain {
		if n == name {
			return chain, true
		}
	}
	return types.ChainID{}, false
}

// OneClickClient wraps the 1Click SDK
type OneClickClient struct {
	client *oneclick.APIClient
	token  string

	mu        sync.RWMutex
	tokens    []oneclick.TokenResponse
	fetchedAt time.Time
}

// NewOneClickClient creates a new 1Click API client. An empty baseURL uses
// the SDK's default server.
func NewOneClickClient(jwtToken, baseURL string, httpClient *http.Client) *OneClickClient {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return &OneClickClient{
		client: oneclick.NewAPIClient(config),
		token:  jwtToken,
	}
}

// authed attaches the JWT to ctx
func (c *OneClickClient) authed(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.token)
}

// GetSupportedTokens retrieves all supported tokens, cached for a few minutes
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	c.mu.RLock()
	if c.tokens != nil && time.Since(c.fetchedAt) < tokenCacheTTL {
		tokens := c.tokens
		c.mu.RUnlock()
		return tokens, nil
	}
	c.mu.RUnlock()

	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authed(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	c.mu.Lock()
	c.tokens = resp
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return resp, nil
}

// FindToken searches for a token by symbol across all chains
func (c *OneClickClient) FindToken(ctx context.Context, symbol string) (*oneclick.TokenResponse, error) {
	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)

	// Try exact match first
	for _, token := range tokens {
		if strings.ToUpper(token.GetSymbol()) == symbol {
			return &token, nil
		}
	}

	// Try partial match
	for _, token := range tokens {
		if strings.Contains(strings.ToUpper(token.GetSymbol()), symbol) {
			return &token, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found", symbol)
}

// FindTokenOnChain searches for a token by symbol on a specific blockchain
func (c *OneClickClient) FindTokenOnChain(ctx context.Context, symbol, blockchain string) (*oneclick.TokenResponse, error) {
	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	blockchain = strings.ToLower(blockchain)

	for _, token := range tokens {
		if strings.ToUpper(token.GetSymbol()) == symbol &&
			strings.ToLower(token.GetBlockchain()) == blockchain {
			return &token, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, blockchain)
}

// ResolveToken turns a symbol on chain into a TokenRef and its USD price
func (c *OneClickClient) ResolveToken(ctx context.Context, symbol string, chain types.ChainID) (types.TokenRef, float64, error) {
	blockchain, ok := Blockchain(chain)
	if !ok {
		return types.TokenRef{}, 0, fmt.Errorf("chain %s is not listed by 1Click", chain)
	}

	token, err := c.FindTokenOnChain(ctx, symbol, blockchain)
	if err != nil {
		return types.TokenRef{}, 0, err
	}

	return ToTokenRef(*token, chain), float64(token.GetPrice()), nil
}

// ToTokenRef converts a token list entry on chain into a TokenRef
func ToTokenRef(token oneclick.TokenResponse, chain types.ChainID) types.TokenRef {
	ref := types.TokenRef{
		Chain:    chain,
		Address:  token.GetContractAddress(),
		Symbol:   token.GetSymbol(),
		Decimals: uint8(token.GetDecimals()),
	}
	if ref.Address == "" {
		ref.Address = nativeAddress[chain.Family()]
		ref.IsNative = true
	}
	return ref
}

// AssetFor finds the token list entry of ref
func (c *OneClickClient) AssetFor(ctx context.Context, ref types.TokenRef) (*oneclick.TokenResponse, error) {
	blockchain, ok := Blockchain(ref.Chain)
	if !ok {
		return nil, fmt.Errorf("chain %s is not listed by 1Click", ref.Chain)
	}

	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	var bySymbol *oneclick.TokenResponse
	for i := range tokens {
		token := tokens[i]
		if strings.ToLower(token.GetBlockchain()) != blockchain {
			continue
		}
		contract := token.GetContractAddress()
		switch {
		case contract != "" && strings.EqualFold(contract, ref.Address):
			return &token, nil
		case contract == "" && ref.IsNative:
			return &token, nil
		case bySymbol == nil && strings.EqualFold(token.GetSymbol(), ref.Symbol):
			bySymbol = &token
		}
	}

	if bySymbol != nil {
		return bySymbol, nil
	}
	return nil, fmt.Errorf("token %s (%s) not supported on %s", ref.Symbol, ref.Address, blockchain)
}

// QuoteParams is the input of a 1Click quote
type QuoteParams struct {
	Dry              bool
	OriginAsset      string
	DestinationAsset string
	Amount           string // smallest unit
	SlippageBps      uint32
	RefundTo         string
	Recipient        string
	Deadline         time.Time
	Referral         string
}

// GetQuote generates a swap quote
func (c *OneClickClient) GetQuote(ctx context.Context, params QuoteParams) (*oneclick.QuoteResponse, error) {
	if params.Recipient == "" {
		return nil, fmt.Errorf("recipient address is required")
	}

	refundTo := params.RefundTo
	if refundTo == "" {
		refundTo = params.Recipient
	}

	deadline := params.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(24 * time.Hour)
	}

	quoteReq := oneclick.NewQuoteRequest(
		params.Dry,                  // dry
		"EXACT_INPUT",               // swapType
		float32(params.SlippageBps), // slippageTolerance in bps
		params.OriginAsset,          // originAsset
		"ORIGIN_CHAIN",              // depositType
		params.DestinationAsset,     // destinationAsset
		params.Amount,               // amount in smallest unit
		refundTo,                    // refundTo
		"ORIGIN_CHAIN",              // refundType
		params.Recipient,            // recipient
		"DESTINATION_CHAIN",         // recipientType
		deadline,                    // deadline
	)
	if params.Referral != "" {
		quoteReq.SetReferral(params.Referral)
	}

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authed(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, apiError(httpResp, "failed to get quote from API", err)
	}
	defer httpResp.Body.Close()

	// Check for successful status codes (200-299)
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{Status: httpResp.StatusCode}
	}

	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	return resp, nil
}

// GetSwapStatus checks the execution status of a swap
func (c *OneClickClient) GetSwapStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.authed(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, apiError(httpResp, "failed to get status", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: httpResp.StatusCode}
	}

	return resp, nil
}

// SubmitDepositTx submits the deposit transaction hash
func (c *OneClickClient) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(txHash, depositAddress)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.authed(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return apiError(httpResp, "failed to submit deposit", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return &StatusError{Status: httpResp.StatusCode}
	}

	return nil
}

// StatusError is a non-2xx answer of the 1Click API
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API returned status code %d", e.Status)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// apiError extracts the API's error message from the response body
func apiError(httpResp *http.Response, msg string, err error) error {
	if httpResp == nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(bodyBytes) == 0 {
		return &StatusError{Status: httpResp.StatusCode, Message: err.Error()}
	}

	// Try to parse as a generic error response
	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return &StatusError{Status: httpResp.StatusCode, Message: message}
		}
		if errors, ok := errorResp["errors"]; ok {
			return &StatusError{Status: httpResp.StatusCode, Message: fmt.Sprint(errors)}
		}
	}

	return &StatusError{Status: httpResp.StatusCode, Message: string(bodyBytes)}
}
