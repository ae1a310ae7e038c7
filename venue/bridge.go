// Copyright (c) 2025 BVK Chaitanya

package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/bvk/buybot/ctxutil"
	"github.com/bvkgo/topic"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// Credentials authenticate this process to the browser-side bridge endpoint.
type Credentials struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

func (c *Credentials) Check() error {
	if len(c.Key) == 0 || len(c.Secret) == 0 {
		return fmt.Errorf("bridge key and secret cannot be empty")
	}
	return nil
}

type BridgeOptions struct {
	// StageReadyTimeout bounds how long each stage call waits for the bridge
	// to report readiness.
	StageReadyTimeout time.Duration

	// PollInterval is the readiness polling interval.
	PollInterval time.Duration

	HTTPTimeout time.Duration
}

func (v *BridgeOptions) setDefaults() {
	if v.StageReadyTimeout == 0 {
		v.StageReadyTimeout = 45 * time.Second
	}
	if v.PollInterval == 0 {
		v.PollInterval = time.Second
	}
	if v.HTTPTimeout == 0 {
		v.HTTPTimeout = 10 * time.Second
	}
}

// Bridge drives the venue through a browser-side bridge endpoint speaking
// JSON over HTTP. The bridge owns the page mechanics; this client only
// issues stage commands and polls for readiness signals.
type Bridge struct {
	opts BridgeOptions

	baseURL *url.URL

	key    string
	signer jose.Signer

	httpClient *http.Client

	limiter *rate.Limiter

	priceTopic *topic.Topic[decimal.Decimal]
}

var _ Driver = &Bridge{}

func NewBridge(baseURL *url.URL, creds *Credentials, opts *BridgeOptions) (*Bridge, error) {
	if err := creds.Check(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = new(BridgeOptions)
	}
	opts.setDefaults()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(creds.Secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create bridge request signer: %w", err)
	}

	b := &Bridge{
		opts:       *opts,
		baseURL:    baseURL,
		key:        creds.Key,
		signer:     signer,
		httpClient: &http.Client{Timeout: opts.HTTPTimeout},
		limiter:    rate.NewLimiter(5, 1),
		priceTopic: topic.New[decimal.Decimal](),
	}
	return b, nil
}

func (b *Bridge) Close() {
	b.priceTopic.Close()
}

// PriceUpdates returns a channel carrying every successfully read price.
func (b *Bridge) PriceUpdates() (<-chan decimal.Decimal, error) {
	_, ch, err := b.priceTopic.Subscribe(1, true /* includeRecent */)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (b *Bridge) signJWT() (string, error) {
	cl := &jwt.Claims{
		Subject:  b.key,
		Issuer:   "buybot",
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Expiry:   jwt.NewNumericDate(time.Now().Add(2 * time.Minute)),
	}
	return jwt.Signed(b.signer).Claims(cl).CompactSerialize()
}

func (b *Bridge) doJSON(ctx context.Context, method, subpath string, body io.Reader, result any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *b.baseURL
	u.Path = path.Join(u.Path, subpath)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("could not create %s request for %q: %w", method, subpath, err)
	}
	token, err := b.signJWT()
	if err != nil {
		return fmt.Errorf("could not sign bridge request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, data)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("could not decode bridge response: %w", err)
		}
	}
	return nil
}

func (b *Bridge) ReadPrice(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		Price *decimal.Decimal `json:"price"`
	}
	if err := b.doJSON(ctx, http.MethodGet, "/price", nil, &resp); err != nil {
		slog.WarnContext(ctx, "could not read price from bridge", "error", err)
		return decimal.Zero, fmt.Errorf("%w: %w", ErrNoPrice, err)
	}
	if resp.Price == nil || resp.Price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrNoPrice
	}
	b.priceTopic.SendCh() <- *resp.Price
	return *resp.Price, nil
}

// stage issues a stage command and polls the bridge until it reports the
// stage ready, rejected or the timeout expires.
func (b *Bridge) stage(ctx context.Context, subpath string, body io.Reader) error {
	var resp struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
	}
	if err := b.doJSON(ctx, http.MethodPost, subpath, body, &resp); err != nil {
		return err
	}
	if !resp.Accepted {
		return fmt.Errorf("%s: %w", resp.Reason, ErrRejected)
	}

	wctx, wcancel := context.WithTimeout(ctx, b.opts.StageReadyTimeout)
	defer wcancel()

	for {
		var status struct {
			Ready    bool   `json:"ready"`
			Rejected bool   `json:"rejected"`
			Reason   string `json:"reason"`
		}
		if err := b.doJSON(wctx, http.MethodGet, path.Join(subpath, "status"), nil, &status); err == nil {
			if status.Rejected {
				return fmt.Errorf("%s: %w", status.Reason, ErrRejected)
			}
			if status.Ready {
				return nil
			}
		}
		ctxutil.Sleep(wctx, b.opts.PollInterval)
		if wctx.Err() != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			return ErrTimeout
		}
	}
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not json-encode request body: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (b *Bridge) SubmitAmount(ctx context.Context, amount decimal.Decimal) error {
	body, err := jsonBody(map[string]any{"amount": amount})
	if err != nil {
		return err
	}
	return b.stage(ctx, "/purchase/amount", body)
}

func (b *Bridge) ConfirmPayment(ctx context.Context) error {
	return b.stage(ctx, "/purchase/payment", nil)
}

func (b *Bridge) ConfirmFinal(ctx context.Context) error {
	return b.stage(ctx, "/purchase/confirm", nil)
}

func (b *Bridge) LastOrderReference(ctx context.Context) (*Reference, error) {
	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := b.doJSON(ctx, http.MethodGet, "/purchase/last", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.ID) == 0 {
		return nil, nil
	}
	return &Reference{ID: resp.ID, URL: resp.URL}, nil
}
