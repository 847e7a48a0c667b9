package correlate

import (
	"sort"

	"github.com/ca-srg/leakscope/internal/record"
)

// Correlate groups records that share a normalized identity value, transitively.
// Records without any identity value become singleton groups. Member order
// follows input order; group order is risk, size, smallest member id, then
// first appearance.
func Correlate(records []record.Record) []record.Group {
	if len(records) == 0 {
		return []record.Group{}
	}

	uf := newUnionFind(len(records))
	owner := make(map[identity]int)
	for i, rec := range records {
		for _, f := range identityFields {
			value := identityValue(rec, f)
			if value == "" {
				continue
			}
			key := identity{field: f, value: value}
			if j, ok := owner[key]; ok {
				uf.union(i, j)
				continue
			}
			owner[key] = i
		}
	}

	// Roots in order of first appearance keep group discovery stable.
	index := make(map[int]int)
	var buckets [][]int
	for i := range records {
		root := uf.find(i)
		g, ok := index[root]
		if !ok {
			g = len(buckets)
			index[root] = g
			buckets = append(buckets, nil)
		}
		buckets[g] = append(buckets[g], i)
	}

	groups := make([]record.Group, 0, len(buckets))
	for _, bucket := range buckets {
		members := make([]record.Record, 0, len(bucket))
		for _, i := range bucket {
			members = append(members, records[i])
		}
		groups = append(groups, record.Group{
			Members:      members,
			Risk:         AssessRisk(members),
			SharedFields: sharedFields(members),
			Sources:      distinctSources(members),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Risk.Severity() != b.Risk.Severity() {
			return a.Risk.Severity() > b.Risk.Severity()
		}
		if len(a.Members) != len(b.Members) {
			return len(a.Members) > len(b.Members)
		}
		return a.MinMemberID() < b.MinMemberID()
	})
	return groups
}

type identity struct {
	field record.Field
	value string
}

func sharedFields(members []record.Record) map[record.Field][]string {
	shared := make(map[record.Field][]string)
	for _, f := range identityFields {
		seen := make(map[string]struct{})
		for _, m := range members {
			if v := identityValue(m, f); v != "" {
				seen[v] = struct{}{}
			}
		}
		if len(seen) == 0 {
			continue
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		shared[f] = values
	}
	return shared
}

func distinctSources(members []record.Record) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.Source]; ok {
			continue
		}
		seen[m.Source] = struct{}{}
		out = append(out, m.Source)
	}
	sort.Strings(out)
	return out
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
