package domain

import "sort"

// TableGroup is one table's live orders, oldest first.
type TableGroup struct {
	TableID string
	Orders  []*Order
}

// HelpRequested reports whether any order at the table has the help flag up.
func (g TableGroup) HelpRequested() bool {
	for _, o := range g.Orders {
		if o.HelpRequested {
			return true
		}
	}
	return false
}

// Total sums the group's order totals.
func (g TableGroup) Total() int64 {
	var sum int64
	for _, o := range g.Orders {
		sum += o.TotalPrice
	}
	return sum
}

// GroupByTable buckets live orders by table ID. It is recomputed from the
// full set on every update; the live set is bounded by seats in the venue, so
// no incremental index is kept. Groups come back sorted by table ID and
// orders within a group by creation time.
func GroupByTable(orders []*Order) []TableGroup {
	byTable := make(map[string][]*Order)
	for _, o := range orders {
		byTable[o.TableID] = append(byTable[o.TableID], o)
	}
	groups := make([]TableGroup, 0, len(byTable))
	for id, list := range byTable {
		sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
		groups = append(groups, TableGroup{TableID: id, Orders: list})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].TableID < groups[j].TableID })
	return groups
}
