package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	aptos "github.com/aptos-labs/aptos-go-sdk"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"lazyview/internal/bcs"
	"lazyview/internal/model"
)

const (
	mimeJSON     = "application/json"
	mimeBCS      = "application/x-bcs"
	mimeViewBCS  = "application/x.aptos.view_function+bcs"
	apiPrefix    = "/v1"
	maxErrorBody = 64 * 1024
)

// Client talks to a ledger full node. Account state goes through the SDK
// node client; module listings, views and raw table items are plain REST
// calls. Both share one http.Client.
type Client struct {
	baseURL  string
	http     *http.Client
	node     *aptos.NodeClient
	requests *atomic.Int64
}

// NewClient creates a client for the node base URL, e.g.
// https://fullnode.mainnet.aptoslabs.com. A zero timeout means none.
func NewClient(nodeURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(nodeURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse node url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported node url scheme %q", u.Scheme)
	}
	base := u.String()
	if !strings.HasSuffix(base, apiPrefix) {
		base += apiPrefix
	}

	requests := &atomic.Int64{}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &countingTransport{next: http.DefaultTransport, n: requests},
	}
	node, err := aptos.NewNodeClientWithHttpClient(base, 0, httpClient)
	if err != nil {
		return nil, fmt.Errorf("node client: %w", err)
	}
	return &Client{
		baseURL:  base,
		http:     httpClient,
		node:     node,
		requests: requests,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Requests returns the number of requests sent so far.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

type countingTransport struct {
	next http.RoundTripper
	n    *atomic.Int64
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.n.Add(1)
	return t.next.RoundTrip(req)
}

func (t *countingTransport) CloseIdleConnections() {
	if ci, ok := t.next.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// ModuleBytecode is one published module as returned by the node.
type ModuleBytecode struct {
	Bytecode hexutil.Bytes `json:"bytecode"`
}

// Resource is one entry of an account's resource map.
type Resource struct {
	Type model.StructTag
	Data []byte
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (uint8, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := c.node.Info()
	if err != nil {
		return 0, wrapSDKError(http.MethodGet, "", err)
	}
	return info.ChainId, nil
}

// AccountModules lists every module published under addr. A zero version
// reads the latest ledger state. The SDK node client has no module listing,
// so this is a plain REST call.
func (c *Client) AccountModules(ctx context.Context, addr model.Address, version uint64) ([]ModuleBytecode, error) {
	body, err := c.do(ctx, http.MethodGet, "/accounts/"+addr.Long()+"/modules", version, mimeJSON, "", nil)
	if err != nil {
		return nil, err
	}
	var modules []ModuleBytecode
	if err := json.Unmarshal(body, &modules); err != nil {
		return nil, fmt.Errorf("decode modules of %s: %w", addr, err)
	}
	return modules, nil
}

// AccountResources returns the account's resources in their canonical
// encoding. A zero version reads the latest ledger state.
func (c *Client) AccountResources(ctx context.Context, addr model.Address, version uint64) ([]Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var versions []uint64
	if version > 0 {
		versions = append(versions, version)
	}
	records, err := c.node.AccountResourcesBCS(aptos.AccountAddress(addr), versions...)
	if err != nil {
		return nil, wrapSDKError(http.MethodGet, "/accounts/"+addr.Long()+"/resources", err)
	}
	out := make([]Resource, 0, len(records))
	for _, rec := range records {
		tag, err := model.ParseStructTag(rec.Tag.String())
		if err != nil {
			return nil, fmt.Errorf("decode resources of %s: %w", addr, err)
		}
		out = append(out, Resource{Type: tag, Data: rec.Data})
	}
	return out, nil
}

// TableItemRaw reads one table cell. found is false when the node reports
// the item as missing.
func (c *Client) TableItemRaw(ctx context.Context, handle model.Address, key []byte, version uint64) ([]byte, bool, error) {
	payload, err := json.Marshal(map[string]string{"key": hexutil.Encode(key)[2:]})
	if err != nil {
		return nil, false, err
	}
	body, err := c.do(ctx, http.MethodPost, "/tables/"+handle.Long()+"/raw_item", version, mimeBCS, mimeJSON, payload)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return body, true, nil
}

// ViewRequest is a function invocation executed by the node itself.
type ViewRequest struct {
	Function model.FunctionID
	TypeArgs []model.TypeTag
	Args     [][]byte
}

// View executes a view function on the node and returns the encoded results.
// The SDK's View answers with JSON-decoded values, so the request goes over
// the BCS endpoint directly.
func (c *Client) View(ctx context.Context, req ViewRequest, version uint64) ([][]byte, error) {
	enc := bcs.NewEncoder()
	enc.Fixed(req.Function.Module.Address[:])
	enc.Str(req.Function.Module.Name)
	enc.Str(req.Function.Name)
	enc.Uleb128(uint64(len(req.TypeArgs)))
	for _, arg := range req.TypeArgs {
		if err := model.EncodeTypeTag(enc, arg); err != nil {
			return nil, err
		}
	}
	enc.Uleb128(uint64(len(req.Args)))
	for _, arg := range req.Args {
		enc.ByteSlice(arg)
	}
	if err := enc.Err(); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "/view", version, mimeBCS, mimeViewBCS, enc.Bytes())
	if err != nil {
		return nil, err
	}
	dec := bcs.NewDecoder(body)
	count, err := dec.Uleb128()
	if err != nil {
		return nil, fmt.Errorf("decode view result: %w", err)
	}
	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		val, err := dec.ByteSlice()
		if err != nil {
			return nil, fmt.Errorf("decode view result %d: %w", i, err)
		}
		out = append(out, val)
	}
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("decode view result: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, version uint64, accept, contentType string, payload []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	if version > 0 {
		endpoint += "?ledger_version=" + strconv.FormatUint(version, 10)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(method, path, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	return body, nil
}

// APIError is a non-success response from the node.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string `json:"message"`
	ErrorCode  string `json:"error_code"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s %s: status %d (%s): %s", e.Method, e.Path, e.StatusCode, e.ErrorCode, msg)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func newAPIError(method, path string, resp *http.Response) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// wrapSDKError turns SDK HTTP failures into *APIError.
func wrapSDKError(method, path string, err error) error {
	var httpErr *aptos.HttpError
	if !errors.As(err, &httpErr) {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	apiErr := &APIError{Method: method, Path: path, StatusCode: httpErr.StatusCode}
	if jsonErr := json.Unmarshal(httpErr.Body, apiErr); jsonErr != nil {
		apiErr.Message = strings.TrimSpace(string(httpErr.Body))
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 response from the node.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
