package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ledgersync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// --- Fakes shared by the service tests ---

// fakeSource implements driven.ExternalClient over canned pages and details.
// List pages are keyed by endpoint and returned under a key of the same
// name, which matches every built-in module.
type fakeSource struct {
	mu       sync.Mutex
	pages    map[string][][]domain.Record
	details  map[string]domain.Record
	comments map[string][]domain.Record
	errs     map[string]error
	calls    []string
	onGet    func(endpoint string, params url.Values)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:    make(map[string][][]domain.Record),
		details:  make(map[string]domain.Record),
		comments: make(map[string][]domain.Record),
		errs:     make(map[string]error),
	}
}

var _ driven.ExternalClient = (*fakeSource)(nil)

func (f *fakeSource) Get(
	_ context.Context, _ domain.Service, endpoint string, params url.Values, _ *domain.Principal,
) (domain.Record, error) {
	f.mu.Lock()
	call := endpoint
	if p := params.Get("page"); p != "" {
		call += "?page=" + p
	}
	f.calls = append(f.calls, call)
	hook := f.onGet
	err := f.errs[call]
	if err == nil {
		err = f.errs[endpoint]
	}
	f.mu.Unlock()

	if hook != nil {
		hook(endpoint, params)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if base, ok := strings.CutSuffix(endpoint, "/comments"); ok {
		return domain.Record{"comments": f.comments[base]}, nil
	}
	if pages, ok := f.pages[endpoint]; ok {
		page, _ := strconv.Atoi(params.Get("page"))
		if page < 1 {
			page = 1
		}
		if page > len(pages) {
			return domain.Record{endpoint: []domain.Record{}}, nil
		}
		return domain.Record{endpoint: pages[page-1]}, nil
	}
	if d, ok := f.details[endpoint]; ok {
		return d.Clone(), nil
	}
	return nil, fmt.Errorf("GET %s: %w", endpoint, domain.ErrNotFound)
}

func (f *fakeSource) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeSource) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeSource) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// addInvoice registers an invoice in both the list and detail views.
func (f *fakeSource) addInvoice(page int, id, date, modified string, items ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summary := domain.Record{
		"invoice_id":         id,
		"invoice_number":     "INV-" + id,
		"customer_id":        "cust-1",
		"date":               date,
		"last_modified_time": modified,
	}
	for len(f.pages["invoices"]) < page {
		f.pages["invoices"] = append(f.pages["invoices"], []domain.Record{})
	}
	f.pages["invoices"][page-1] = append(f.pages["invoices"][page-1], summary)

	detail := summary.Clone()
	lineItems := make([]any, 0, len(items))
	for _, li := range items {
		lineItems = append(lineItems, map[string]any{
			"line_item_id": li,
			"name":         "Item " + li,
			"quantity":     1,
			"rate":         10,
		})
	}
	detail["line_items"] = lineItems
	f.details["invoices/"+id] = domain.Record{"invoice": map[string]any(detail)}
}

// setPages replaces the list pages for an endpoint.
func (f *fakeSource) setPages(endpoint string, pages ...[]domain.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[endpoint] = pages
}

// failingStore wraps a store and injects write and read failures.
type failingStore struct {
	driven.Store

	mu          sync.Mutex
	failIDs     map[string]bool
	failSelect  bool
	unavailable bool
	upsertCalls int
}

func newFailingStore(inner driven.Store) *failingStore {
	return &failingStore{Store: inner, failIDs: make(map[string]bool)}
}

func (s *failingStore) Upsert(
	ctx context.Context, table string, records []domain.Record, keys []string,
) ([]domain.Record, error) {
	s.mu.Lock()
	s.upsertCalls++
	unavailable := s.unavailable
	s.mu.Unlock()

	if unavailable {
		return nil, fmt.Errorf("dial sqlite: %w", domain.ErrStoreUnavailable)
	}
	for _, r := range records {
		for _, k := range keys {
			if s.failIDs[r.String(k)] {
				return nil, errors.New("constraint failed: CHECK")
			}
		}
	}
	return s.Store.Upsert(ctx, table, records, keys)
}

func (s *failingStore) Select(ctx context.Context, table string, q domain.Query) ([]domain.Record, error) {
	if s.failSelect {
		return nil, errors.New("database is locked")
	}
	return s.Store.Select(ctx, table, q)
}

// testNow is the fixed clock used by the historical tests. With a 30 day
// window the start is 2024-03-01.
var testNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func newTestStore() *memory.Store {
	return memory.NewStore()
}

func liveRows(store driven.Store, table string, filter ...domain.Predicate) []domain.Record {
	rows, err := store.Select(context.Background(), table, domain.Query{Filter: domain.Live(filter...)})
	if err != nil {
		panic(err)
	}
	return rows
}
