package category

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Lookup classifies a single token. It is the boundary to the external
// classification service.
type Lookup interface {
	TokenCategory(ctx context.Context, token types.TokenRef) (types.TokenCategory, error)
}

// SymbolLookup classifies tokens offline from well-known symbol lists
type SymbolLookup struct{}

// TokenCategory implements Lookup
func (SymbolLookup) TokenCategory(_ context.Context, token types.TokenRef) (types.TokenCategory, error) {
	symbol := strings.ToUpper(token.Symbol)
	switch {
	case stableSymbols[symbol]:
		return types.TokenStable, nil
	case commonSymbols[symbol]:
		return types.TokenCommon, nil
	default:
		return types.TokenExotic, nil
	}
}

// HTTPLookup queries the token classification service and memoises answers
type HTTPLookup struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	cache map[string]types.TokenCategory
}

// NewHTTPLookup creates a lookup against baseURL
func NewHTTPLookup(baseURL string, client *http.Client) *HTTPLookup {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPLookup{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cache:   make(map[string]types.TokenCategory),
	}
}

type categoryResponse struct {
	Data struct {
		Category string `json:"category"`
	} `json:"data"`
}

// TokenCategory implements Lookup
func (l *HTTPLookup) TokenCategory(ctx context.Context, token types.TokenRef) (types.TokenCategory, error) {
	key := token.Key()

	l.mu.RLock()
	cached, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	q := url.Values{}
	q.Set("chainId", token.Chain.String())
	q.Set("address", token.Address)
	endpoint := l.baseURL + "/api/v1/tokens/category?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("category lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("category lookup returned status code %d", resp.StatusCode)
	}

	var body categoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode category: %w", err)
	}

	category := types.TokenCategory(body.Data.Category)
	if !category.Valid() {
		return "", fmt.Errorf("unknown category '%s'", body.Data.Category)
	}

	l.mu.Lock()
	l.cache[key] = category
	l.mu.Unlock()

	return category, nil
}
