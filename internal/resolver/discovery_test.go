package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"knx-resolve/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKV struct {
	mu    sync.Mutex
	data  map[string]string
	nxErr error
}

var _ store.KV = (*fakeKV)(nil)

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nxErr != nil {
		return false, f.nxErr
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	return true, nil
}

type searchCall struct {
	Query string `json:"q"`
}

// discoveryServers 起一对假的检索/抽取服务
func discoveryServers(t *testing.T, links [][]string) (*httptest.Server, *httptest.Server, *[]string, *[]map[string]any) {
	t.Helper()

	var mu sync.Mutex
	queries := &[]string{}
	extracted := &[]map[string]any{}

	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "search-key", r.Header.Get("X-API-KEY"))
		var call searchCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))

		mu.Lock()
		idx := len(*queries)
		*queries = append(*queries, call.Query)
		mu.Unlock()

		var organic []map[string]string
		if idx < len(links) {
			for _, l := range links[idx] {
				organic = append(organic, map[string]string{"link": l})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"organic": organic})
	}))

	extractSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer extract-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		*extracted = append(*extracted, body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))

	return searchSrv, extractSrv, queries, extracted
}

func newTestTrigger(searchURL, extractURL string, kv store.KV) *DiscoveryTrigger {
	d := NewDiscoveryTrigger(searchURL, "search-key", extractURL, "extract-key", kv, zap.NewNop())
	d.queryDelay = 0
	return d
}

func TestDiscovery_DisabledWithoutKeys(t *testing.T) {
	searchSrv, extractSrv, queries, extracted := discoveryServers(t, nil)
	defer searchSrv.Close()
	defer extractSrv.Close()

	d := NewDiscoveryTrigger(searchSrv.URL, "", extractSrv.URL, "extract-key", nil, zap.NewNop())
	assert.False(t, d.Enabled())

	d.Run(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1038"), []string{"1038"})
	assert.Empty(t, *queries)
	assert.Empty(t, *extracted)
}

func TestDiscovery_CollectsPDFsAndSubmitsTopTwo(t *testing.T) {
	searchSrv, extractSrv, queries, extracted := discoveryServers(t, [][]string{
		{"https://gira.de/a.pdf", "https://gira.de/page.html"},
		{"https://gira.de/b.PDF", "https://gira.de/a.pdf"}, // 重复的 a.pdf 要去重
		{"https://gira.de/c.pdf"},
	})
	defer searchSrv.Close()
	defer extractSrv.Close()

	d := newTestTrigger(searchSrv.URL, extractSrv.URL, nil)
	d.Run(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1038.11"), []string{"1038", "1038 00"})

	// 第三条查询后收满 3 个 PDF 提前停
	assert.Len(t, *queries, 3)
	// site: 限定查询排在前面（Gira 有已知域名）
	assert.Contains(t, (*queries)[0], "site:gira.de")
	assert.Contains(t, (*queries)[0], `"1038"`)

	// 只抽前 2 个
	require.Len(t, *extracted, 2)
	assert.Equal(t, "https://gira.de/a.pdf", (*extracted)[0]["pdf_url"])
	assert.Equal(t, "https://gira.de/b.PDF", (*extracted)[1]["pdf_url"])
	assert.Equal(t, "1038", (*extracted)[0]["order_number"])
	assert.Equal(t, "gira", (*extracted)[0]["manufacturer"])
}

func TestDiscovery_QueryCapWithoutResults(t *testing.T) {
	searchSrv, extractSrv, queries, extracted := discoveryServers(t, nil)
	defer searchSrv.Close()
	defer extractSrv.Close()

	d := newTestTrigger(searchSrv.URL, extractSrv.URL, nil)
	d.Run(context.Background(), testManufacturer(), ParseKNXID("M-0008"),
		[]string{"term1", "term2", "term3", "term4", "term5"})

	// 最多 5 条查询
	assert.Len(t, *queries, 5)
	assert.Empty(t, *extracted)
}

func TestDiscovery_InflightMarkerSuppressesDuplicate(t *testing.T) {
	searchSrv, extractSrv, queries, _ := discoveryServers(t, nil)
	defer searchSrv.Close()
	defer extractSrv.Close()

	kv := newFakeKV()
	d := newTestTrigger(searchSrv.URL, extractSrv.URL, kv)

	segments := ParseKNXID("M-0008_P-1038")
	d.Run(context.Background(), testManufacturer(), segments, []string{"1038"})
	first := len(*queries)
	assert.Greater(t, first, 0)

	// 标记还在：第二次直接跳过
	d.Run(context.Background(), testManufacturer(), segments, []string{"1038"})
	assert.Equal(t, first, len(*queries))
}

func TestDiscovery_MarkerErrorDoesNotBlock(t *testing.T) {
	searchSrv, extractSrv, queries, _ := discoveryServers(t, nil)
	defer searchSrv.Close()
	defer extractSrv.Close()

	kv := newFakeKV()
	kv.nxErr = assert.AnError
	d := newTestTrigger(searchSrv.URL, extractSrv.URL, kv)

	d.Run(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1038"), []string{"1038"})
	assert.Greater(t, len(*queries), 0)
}
