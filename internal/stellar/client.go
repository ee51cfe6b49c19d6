// internal/stellar/client.go
package stellar

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

// DefaultPaymentTimeout bounds the validity window of a built payload.
const DefaultPaymentTimeout = 180 * time.Second

const baseFeeStroops = 100

// Outcome classifies a settlement submission response.
type Outcome int

const (
	// OutcomeSuccess means the payment was applied to the ledger.
	OutcomeSuccess Outcome = iota
	// OutcomeSequenceConflict means the network rejected the sequence
	// number; the coordinator must resynchronize and retry.
	OutcomeSequenceConflict
	// OutcomeRejected is an operation-level rejection (insufficient funds,
	// missing destination, ...). Terminal, never retried.
	OutcomeRejected
	// OutcomeTransient is a network-level failure worth retrying with backoff.
	OutcomeTransient
)

// SettlementResult is the classified response to a submission.
type SettlementResult struct {
	Successful      bool    `json:"successful"`
	Outcome         Outcome `json:"-"`
	TransactionHash string  `json:"transactionHash,omitempty"`
	Ledger          int64   `json:"ledger,omitempty"`
	ResultCode      string  `json:"resultCode,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
}

// PaymentParams describes one payment to build and sign. Sequence must be
// supplied by the caller; the client never fetches its own. That discipline
// is what keeps concurrent submissions from racing on the shared account.
type PaymentParams struct {
	Destination string
	Amount      decimal.Decimal
	Asset       string // "XLM" or "CODE:ISSUER"
	Memo        string
	Timeout     time.Duration // Defaults to DefaultPaymentTimeout
	Sequence    int64
}

// SignedPayload is a built, signed payment ready for submission.
type SignedPayload struct {
	Envelope string // base64-encoded signed envelope
	Hash     string // hex digest identifying the payload
	Sequence int64
}

// AssetBalance is one asset line held by an account.
type AssetBalance struct {
	Asset   string  `json:"asset"`
	Balance string  `json:"balance"`
	Limit   *string `json:"limit,omitempty"`
}

// AccountDetails is the ledger's view of an account.
type AccountDetails struct {
	Address  string
	Sequence int64
	Balances []AssetBalance
}

// Config holds the settlement network configuration.
type Config struct {
	HorizonURL        string
	NetworkPassphrase string
	SourceSecretSeed  string // hex-encoded 32-byte ed25519 seed of the custodial account
	RequestTimeout    time.Duration
}

// Client talks to the Horizon-style ledger API on behalf of the custodial
// source account.
type Client struct {
	horizonURL        string
	networkPassphrase string
	httpClient        *http.Client
	signingKey        ed25519.PrivateKey
	sourceAddress     string
	logger            *slog.Logger
}

// NewClient derives the custodial keypair from the configured seed and
// returns a ready client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	seed, err := hex.DecodeString(cfg.SourceSecretSeed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("source secret seed must be %d hex-encoded bytes", ed25519.SeedSize)
	}
	key := ed25519.NewKeyFromSeed(seed)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		horizonURL:        strings.TrimRight(cfg.HorizonURL, "/"),
		networkPassphrase: cfg.NetworkPassphrase,
		httpClient:        &http.Client{Timeout: timeout},
		signingKey:        key,
		sourceAddress:     EncodeAccountID(key.Public().(ed25519.PublicKey)),
		logger:            logger,
	}, nil
}

// SourceAddress returns the custodial account id all payments are signed by.
func (c *Client) SourceAddress() string {
	return c.sourceAddress
}

// envelope is the canonical form that gets signed. Field order is fixed by
// the struct so the signature is reproducible.
type envelope struct {
	Network     string `json:"network"`
	Source      string `json:"source"`
	Sequence    int64  `json:"sequence"`
	Fee         int64  `json:"fee"`
	Destination string `json:"destination"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Memo        string `json:"memo,omitempty"`
	MinTime     int64  `json:"min_time"`
	MaxTime     int64  `json:"max_time"`
}

type signedEnvelope struct {
	Envelope  envelope `json:"envelope"`
	Signature string   `json:"signature"`
}

// BuildAndSign validates the payment, builds the canonical envelope with a
// validity window of params.Timeout, and signs it with the custodial key.
func (c *Client) BuildAndSign(params PaymentParams) (*SignedPayload, error) {
	if !IsValidAccountID(params.Destination) {
		return nil, fmt.Errorf("destination %q: %w", params.Destination, util.ErrInvalidDestination)
	}
	asset, err := ParseAsset(params.Asset)
	if err != nil {
		return nil, err
	}
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive: %w", util.ErrBuildFailed)
	}
	if params.Sequence <= 0 {
		return nil, fmt.Errorf("a caller-supplied sequence number is required: %w", util.ErrBuildFailed)
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultPaymentTimeout
	}

	env := envelope{
		Network:     c.networkPassphrase,
		Source:      c.sourceAddress,
		Sequence:    params.Sequence,
		Fee:         baseFeeStroops,
		Destination: params.Destination,
		Asset:       asset.String(),
		Amount:      params.Amount.String(),
		Memo:        params.Memo,
		MinTime:     0,
		MaxTime:     time.Now().Add(timeout).Unix(),
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrBuildFailed, err)
	}

	signed := signedEnvelope{
		Envelope:  env,
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(c.signingKey, envBytes)),
	}
	payloadBytes, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrBuildFailed, err)
	}

	digest := sha256.Sum256(payloadBytes)
	return &SignedPayload{
		Envelope: base64.StdEncoding.EncodeToString(payloadBytes),
		Hash:     hex.EncodeToString(digest[:]),
		Sequence: params.Sequence,
	}, nil
}

// horizonSubmitResponse is the success body of POST /transactions.
type horizonSubmitResponse struct {
	Hash   string `json:"hash"`
	Ledger int64  `json:"ledger"`
}

// horizonProblem is the error body, carrying result codes in extras.
type horizonProblem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Extras struct {
		ResultCodes struct {
			Transaction string   `json:"transaction"`
			Operations  []string `json:"operations"`
		} `json:"result_codes"`
	} `json:"extras"`
}

// Submit posts a signed payload and classifies the response. Transport
// failures and timeouts come back as OutcomeTransient results, not errors;
// the error return is reserved for malformed inputs.
func (c *Client) Submit(ctx context.Context, payload *SignedPayload) (*SettlementResult, error) {
	if payload == nil || payload.Envelope == "" {
		return nil, fmt.Errorf("empty payload: %w", util.ErrBuildFailed)
	}

	form := url.Values{"tx": {payload.Envelope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.horizonURL+"/transactions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Settlement submission transport failure", "error", err)
		return &SettlementResult{Outcome: OutcomeTransient, ErrorMessage: err.Error()}, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SettlementResult{Outcome: OutcomeTransient, ErrorMessage: err.Error()}, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var success horizonSubmitResponse
		if err := json.Unmarshal(body, &success); err != nil {
			return &SettlementResult{Outcome: OutcomeTransient, ErrorMessage: "unparseable success response"}, nil
		}
		hash := success.Hash
		if hash == "" {
			hash = payload.Hash
		}
		c.logger.Info("Settlement submitted", "hash", hash, "ledger", success.Ledger)
		return &SettlementResult{
			Successful:      true,
			Outcome:         OutcomeSuccess,
			TransactionHash: hash,
			Ledger:          success.Ledger,
		}, nil
	}

	return c.classifyFailure(resp.StatusCode, body), nil
}

func (c *Client) classifyFailure(status int, body []byte) *SettlementResult {
	var problem horizonProblem
	_ = json.Unmarshal(body, &problem)

	resultCode := problem.Extras.ResultCodes.Transaction
	if resultCode == "" && len(problem.Extras.ResultCodes.Operations) > 0 {
		resultCode = strings.Join(problem.Extras.ResultCodes.Operations, ", ")
	}
	message := problem.Detail
	if message == "" {
		message = problem.Title
	}

	result := &SettlementResult{
		ResultCode:   resultCode,
		ErrorMessage: message,
	}
	switch {
	case resultCode == "tx_bad_seq":
		result.Outcome = OutcomeSequenceConflict
	case status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		result.Outcome = OutcomeTransient
	default:
		result.Outcome = OutcomeRejected
	}
	c.logger.Warn("Settlement submission failed",
		"status", status, "result_code", resultCode, "outcome", result.Outcome)
	return result
}

// horizonAccountResponse is the body of GET /accounts/{id}. Horizon renders
// the sequence as a JSON string.
type horizonAccountResponse struct {
	AccountID string `json:"account_id"`
	Sequence  string `json:"sequence"`
	Balances  []struct {
		AssetType   string  `json:"asset_type"`
		AssetCode   string  `json:"asset_code"`
		AssetIssuer string  `json:"asset_issuer"`
		Balance     string  `json:"balance"`
		Limit       *string `json:"limit"`
	} `json:"balances"`
}

// LoadAccount fetches an account's current sequence number and balances.
func (c *Client) LoadAccount(ctx context.Context, address string) (*AccountDetails, error) {
	if !IsValidAccountID(address) {
		return nil, fmt.Errorf("address %q: %w", address, util.ErrInvalidDestination)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.horizonURL+"/accounts/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("build account request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSettlementUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("account %s: %w", address, util.ErrAccountNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: account load returned status %d", util.ErrSettlementUnavailable, resp.StatusCode)
	}

	var account horizonAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode account response: %w", err)
	}
	sequence, err := strconv.ParseInt(account.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("account %s has malformed sequence %q: %w", address, account.Sequence, err)
	}

	details := &AccountDetails{Address: account.AccountID, Sequence: sequence}
	for _, b := range account.Balances {
		assetName := b.AssetType
		var limit *string
		switch {
		case b.AssetType == "native":
			assetName = NativeAssetCode
		case b.AssetCode != "" && b.AssetIssuer != "":
			assetName = b.AssetCode + ":" + b.AssetIssuer
			limit = b.Limit
		default:
			if b.Limit != nil {
				limit = b.Limit
			}
		}
		details.Balances = append(details.Balances, AssetBalance{
			Asset:   assetName,
			Balance: b.Balance,
			Limit:   limit,
		})
	}
	return details, nil
}

// AccountExists reports whether address is funded on the ledger.
func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	_, err := c.LoadAccount(ctx, address)
	if err == nil {
		return true, nil
	}
	if util.IsError(err, util.ErrAccountNotFound) {
		return false, nil
	}
	return false, err
}

// GetBalances returns the asset lines held by address.
func (c *Client) GetBalances(ctx context.Context, address string) ([]AssetBalance, error) {
	account, err := c.LoadAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	return account.Balances, nil
}
