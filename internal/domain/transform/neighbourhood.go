package transform

import (
	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/allowlist"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// SmallDistrictsPrefix starts the label given to neighbourhoods outside the allow-list.
const SmallDistrictsPrefix = "small districts in "

// GroupRareNeighbourhoods rewrites every neighbourhood missing from the
// allow-list to SmallDistrictsPrefix + its group. A null neighbourhood is
// never a member and is rewritten too. Rows that need rewriting must carry a
// non-null group.
type GroupRareNeighbourhoods struct {
	Neighbourhood string
	Group         string
	Allow         *allowlist.AllowList
}

// Name returns the step name.
func (GroupRareNeighbourhoods) Name() string { return NameGroupNeighbourhoods }

// Apply rewrites rare neighbourhoods.
func (s GroupRareNeighbourhoods) Apply(t *table.Table) (*table.Table, error) {
	hoods, err := column(NameGroupNeighbourhoods, t, s.Neighbourhood)
	if err != nil {
		return nil, err
	}
	groups, hasGroups := t.Column(s.Group)

	for i, v := range hoods {
		if label, ok := v.Text(); ok && s.Allow.Contains(label) {
			continue
		}
		if !hasGroups {
			return nil, domain.NewSchemaError(NameGroupNeighbourhoods, s.Group,
				"column not found, needed to regroup row %q", t.Key(i))
		}
		group, ok := groups[i].Text()
		if !ok {
			return nil, domain.NewSchemaError(NameGroupNeighbourhoods, s.Group,
				"row %q has no group to regroup into", t.Key(i))
		}
		hoods[i] = table.String(SmallDistrictsPrefix + group)
	}
	return t.WithColumn(s.Neighbourhood, hoods)
}
