// Package chaintest runs an in-process node serving fixed ledger state.
package chaintest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"lazyview/internal/bcs"
	"lazyview/internal/model"
)

// ViewFunc answers a /view request body with encoded return values.
type ViewFunc func(body []byte) ([][]byte, int)

// Node is a fake full node. Handlers only read the maps, so populate them
// before issuing requests.
type Node struct {
	Server *httptest.Server

	mu        sync.Mutex
	modules   map[model.Address][][]byte
	resources map[model.Address][]resource
	tables    map[string][]byte
	tableErr  map[string]int
	view      ViewFunc

	moduleCalls   atomic.Int64
	resourceCalls atomic.Int64
	tableCalls    atomic.Int64
	viewCalls     atomic.Int64
	versions      []string
}

type resource struct {
	tag  model.StructTag
	data []byte
}

// NewNode starts a node; it is closed when the test cleanup runs.
func NewNode(cleanup func(func())) *Node {
	n := &Node{
		modules:   map[model.Address][][]byte{},
		resources: map[model.Address][]resource{},
		tables:    map[string][]byte{},
		tableErr:  map[string]int{},
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	cleanup(n.Server.Close)
	return n
}

// URL is the node base URL.
func (n *Node) URL() string { return n.Server.URL }

func (n *Node) AddModule(addr model.Address, code []byte) {
	n.mu.Lock()
	n.modules[addr] = append(n.modules[addr], code)
	n.mu.Unlock()
}

func (n *Node) AddResource(addr model.Address, tag model.StructTag, data []byte) {
	n.mu.Lock()
	n.resources[addr] = append(n.resources[addr], resource{tag: tag, data: data})
	n.mu.Unlock()
}

// SetTableItem stores a table value under the hex key (no 0x prefix).
func (n *Node) SetTableItem(handle model.Address, keyHex string, value []byte) {
	n.mu.Lock()
	n.tables[handle.Long()+"/"+keyHex] = value
	n.mu.Unlock()
}

// FailTableItem makes lookups of the key answer with status.
func (n *Node) FailTableItem(handle model.Address, keyHex string, status int) {
	n.mu.Lock()
	n.tableErr[handle.Long()+"/"+keyHex] = status
	n.mu.Unlock()
}

func (n *Node) SetView(fn ViewFunc) {
	n.mu.Lock()
	n.view = fn
	n.mu.Unlock()
}

func (n *Node) ModuleCalls() int64   { return n.moduleCalls.Load() }
func (n *Node) ResourceCalls() int64 { return n.resourceCalls.Load() }
func (n *Node) TableCalls() int64    { return n.tableCalls.Load() }
func (n *Node) ViewCalls() int64     { return n.viewCalls.Load() }

// LedgerVersions returns the ledger_version query values seen so far.
func (n *Node) LedgerVersions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.versions...)
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.versions = append(n.versions, r.URL.Query().Get("ledger_version"))
	n.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1")
	switch {
	case path == "" || path == "/":
		writeJSON(w, http.StatusOK, map[string]any{
			"chain_id":              4,
			"epoch":                 "1",
			"ledger_version":        "100",
			"oldest_ledger_version": "0",
			"ledger_timestamp":      "1700000000000000",
			"node_role":             "full_node",
			"oldest_block_height":   "0",
			"block_height":          "10",
			"git_hash":              "0000",
		})
	case strings.HasPrefix(path, "/accounts/") && strings.HasSuffix(path, "/modules"):
		n.moduleCalls.Add(1)
		n.serveModules(w, strings.TrimSuffix(strings.TrimPrefix(path, "/accounts/"), "/modules"))
	case strings.HasPrefix(path, "/accounts/") && strings.HasSuffix(path, "/resources"):
		n.resourceCalls.Add(1)
		n.serveResources(w, strings.TrimSuffix(strings.TrimPrefix(path, "/accounts/"), "/resources"))
	case strings.HasPrefix(path, "/tables/") && strings.HasSuffix(path, "/raw_item"):
		n.tableCalls.Add(1)
		n.serveTable(w, r, strings.TrimSuffix(strings.TrimPrefix(path, "/tables/"), "/raw_item"))
	case path == "/view":
		n.viewCalls.Add(1)
		n.serveView(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found", "error_code": "web_framework_error"})
	}
}

func (n *Node) serveModules(w http.ResponseWriter, account string) {
	addr, err := model.ParseAddress(account)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	n.mu.Lock()
	codes := n.modules[addr]
	n.mu.Unlock()
	out := make([]map[string]hexutil.Bytes, 0, len(codes))
	for _, code := range codes {
		out = append(out, map[string]hexutil.Bytes{"bytecode": code})
	}
	writeJSON(w, http.StatusOK, out)
}

func (n *Node) serveResources(w http.ResponseWriter, account string) {
	addr, err := model.ParseAddress(account)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	n.mu.Lock()
	items := n.resources[addr]
	n.mu.Unlock()
	enc := bcs.NewEncoder()
	enc.Uleb128(uint64(len(items)))
	for _, item := range items {
		if err := model.EncodeStructTag(enc, item.tag); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
			return
		}
		enc.ByteSlice(item.data)
	}
	_, _ = w.Write(enc.Bytes())
}

func (n *Node) serveTable(w http.ResponseWriter, r *http.Request, handle string) {
	addr, err := model.ParseAddress(handle)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	id := addr.Long() + "/" + body.Key
	n.mu.Lock()
	status, failed := n.tableErr[id]
	value, ok := n.tables[id]
	n.mu.Unlock()
	switch {
	case failed:
		writeJSON(w, status, map[string]string{"message": "table read failed"})
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Table Item not found", "error_code": "table_item_not_found"})
	default:
		_, _ = w.Write(value)
	}
}

func (n *Node) serveView(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	fn := n.view
	n.mu.Unlock()
	if fn == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "view not configured"})
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	values, status := fn(body)
	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"message": "view failed", "error_code": "invalid_input"})
		return
	}
	enc := bcs.NewEncoder()
	enc.Uleb128(uint64(len(values)))
	for _, v := range values {
		enc.ByteSlice(v)
	}
	_, _ = w.Write(enc.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
