package services

import (
	"net/url"
	"strconv"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// pageSize is the number of records requested per list call.
const pageSize = 50

// listStrategy builds list-call parameters for one source service. The
// services agree on newest-first paging but disagree on parameter names.
type listStrategy interface {
	// pageParams returns the parameters for a windowed, newest-first page.
	pageParams(desc driven.TransactionDescriptor, window domain.SyncWindow, page int) url.Values
}

// strategyFor resolves the list strategy for a service. Every synced
// transaction type lives on a finance service.
func strategyFor(domain.Service) listStrategy {
	return financeStrategy{}
}

// financeStrategy serves the accounting and inventory APIs, which accept a
// date range and a single-letter sort order.
type financeStrategy struct{}

func (financeStrategy) pageParams(desc driven.TransactionDescriptor, window domain.SyncWindow, page int) url.Values {
	v := url.Values{}
	v.Set("per_page", strconv.Itoa(pageSize))
	v.Set("page", strconv.Itoa(page))
	v.Set("sort_column", desc.SortColumn())
	v.Set("sort_order", "D")
	v.Set("date_start", window.StartDate())
	v.Set("date_end", window.EndDate())
	return v
}
