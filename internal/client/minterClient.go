package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"rwa-shop-backend/internal/config"
)

var walletAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// MinterClient submits ERC-1155 mints through the relayer service. The
// relayer owns signing, RPC transport and chain configuration; from here a
// mint is a single call that either returns a transaction hash or fails.
// The relayer gives no idempotency guarantee: if a submission lands on-chain
// but the response is lost, a retry can mint twice.
type MinterClient interface {
	SubmitMint(ctx context.Context, walletAddress string, tokenID, amount int64) (string, error)
}

type minterClientImpl struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewMinterClient(cfg *config.Minter) MinterClient {
	return &minterClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

type mintRequest struct {
	To      string `json:"to"`
	TokenID int64  `json:"tokenId"`
	Amount  int64  `json:"amount"`
}

type mintResponse struct {
	TxHash string `json:"txHash"`
}

func (c *minterClientImpl) SubmitMint(ctx context.Context, walletAddress string, tokenID, amount int64) (string, error) {
	if !walletAddressRe.MatchString(walletAddress) {
		return "", fmt.Errorf("invalid wallet address %q", walletAddress)
	}

	body, err := json.Marshal(&mintRequest{
		To:      walletAddress,
		TokenID: tokenID,
		Amount:  amount,
	})
	if err != nil {
		return "", fmt.Errorf("marshal mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/mint", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("minter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("minter error %d: %s", resp.StatusCode, string(b))
	}

	var result mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode minter response: %w", err)
	}
	if result.TxHash == "" {
		return "", fmt.Errorf("minter returned empty tx hash")
	}

	return result.TxHash, nil
}
