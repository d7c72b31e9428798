package chain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lazyview/internal/bcs"
	"lazyview/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, 0)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ftp://node", 0); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}

func TestAccountModules(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/accounts/"+model.CoreAddress.Long()+"/modules", r.URL.Path)
		require.Equal(t, "42", r.URL.Query().Get("ledger_version"))
		_, _ = io.WriteString(w, `[{"bytecode":"0xa11ceb0b"},{"bytecode":"0x01"}]`)
	}))

	modules, err := c.AccountModules(context.Background(), model.CoreAddress, 42)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	require.Equal(t, []byte{0xa1, 0x1c, 0xeb, 0x0b}, []byte(modules[0].Bytecode))
	require.EqualValues(t, 1, c.Requests())
}

func TestAccountResources(t *testing.T) {
	tag, err := model.ParseStructTag("0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>")
	require.NoError(t, err)

	var versions []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Accept"), mimeBCS)
		require.True(t, strings.HasSuffix(r.URL.Path, "/resources"), r.URL.Path)
		versions = append(versions, r.URL.Query().Get("ledger_version"))
		enc := bcs.NewEncoder()
		enc.Uleb128(1)
		require.NoError(t, model.EncodeStructTag(enc, tag))
		enc.ByteSlice([]byte{1, 2, 3})
		_, _ = w.Write(enc.Bytes())
	}))

	resources, err := c.AccountResources(context.Background(), model.CoreAddress, 0)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Equal(t, tag.String(), resources[0].Type.String())
	require.Equal(t, []byte{1, 2, 3}, resources[0].Data)

	_, err = c.AccountResources(context.Background(), model.CoreAddress, 42)
	require.NoError(t, err)
	require.Equal(t, []string{"", "42"}, versions)
	require.EqualValues(t, 2, c.Requests())
}

func TestAccountResourcesError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"message":"overloaded","error_code":"internal_error"}`)
	}))

	_, err := c.AccountResources(context.Background(), model.CoreAddress, 0)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.False(t, IsNotFound(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.AccountResources(ctx, model.CoreAddress, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChainID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"chain_id":4,"epoch":"1","ledger_version":"100","oldest_ledger_version":"0","ledger_timestamp":"1","node_role":"full_node","oldest_block_height":"0","block_height":"10","git_hash":"abc"}`)
	}))

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, id)
}

func TestTableItemRaw(t *testing.T) {
	handle := model.MustParseAddress("0xabc")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body["key"] {
		case "0102":
			_, _ = w.Write([]byte{9, 9})
		case "ff":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Table Item not found","error_code":"table_item_not_found"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom")
		}
	}))
	ctx := context.Background()

	val, found, err := c.TableItemRaw(ctx, handle, []byte{1, 2}, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{9, 9}, val)

	val, found, err = c.TableItemRaw(ctx, handle, []byte{0xff}, 0)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, val)

	_, _, err = c.TableItemRaw(ctx, handle, []byte{0x00}, 0)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "boom", apiErr.Message)
	require.False(t, IsNotFound(err))
}

func TestView(t *testing.T) {
	fn, err := model.ParseFunctionID("0x1::coin::balance")
	require.NoError(t, err)
	coin := model.MustParseTypeTag("0x1::aptos_coin::AptosCoin")

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/view", r.URL.Path)
		require.Equal(t, mimeViewBCS, r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		dec := bcs.NewDecoder(raw)
		addr, err := model.DecodeAddress(dec)
		require.NoError(t, err)
		require.Equal(t, model.CoreAddress, addr)
		module, err := dec.Str()
		require.NoError(t, err)
		name, err := dec.Str()
		require.NoError(t, err)
		require.Equal(t, "coin", module)
		require.Equal(t, "balance", name)
		n, err := dec.Uleb128()
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		tt, err := model.DecodeTypeTag(dec)
		require.NoError(t, err)
		require.Equal(t, coin.String(), tt.String())

		enc := bcs.NewEncoder()
		enc.Uleb128(1)
		out := bcs.NewEncoder()
		out.U64(500)
		enc.ByteSlice(out.Bytes())
		_, _ = w.Write(enc.Bytes())
	}))

	res, err := c.View(context.Background(), ViewRequest{
		Function: fn,
		TypeArgs: []model.TypeTag{coin},
		Args:     [][]byte{model.CoreAddress[:]},
	}, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, []byte{0xf4, 0x01, 0, 0, 0, 0, 0, 0}, res[0])
}
