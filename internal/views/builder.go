package views

import (
	"fmt"
	"strings"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
)

// Columns is the row shape shared by every canonical view.
var Columns = []string{
	"parent_type", "parameter", "value", "unit",
	"dimension", "dimension_value", "dimension_unit",
	"entity", "geography_id", "geography_name",
}

// SummaryColumns is the row shape of aggregate views.
var SummaryColumns = []string{
	"entity", "geography_id", "parameter", "unit", "mean", "stddev", "observation_count",
}

// Builder renders view definitions to SQL for one dialect.
type Builder struct {
	dialect db.Dialect
}

func NewBuilder(dialect db.Dialect) Builder { return Builder{dialect: dialect} }

// Query returns the SELECT that defines d.
func (b Builder) Query(d Def) (string, error) {
	switch d.Kind {
	case KindSingle, KindMulti:
		vs := types.FamilyVariants(d.Family)
		if len(vs) == 0 {
			return "", fmt.Errorf("view %s: family %q has no parent types", d.Name, d.Family)
		}
		if d.Kind == KindSingle && len(vs) != 1 {
			return "", fmt.Errorf("view %s: single-parent view over %d parent types", d.Name, len(vs))
		}
		branches := make([]string, 0, len(vs))
		for _, v := range vs {
			branches = append(branches, b.branch(v))
		}
		return strings.Join(branches, "\nUNION ALL\n"), nil
	case KindAggregate:
		if d.Source == "" {
			return "", fmt.Errorf("view %s: aggregate without source", d.Name)
		}
		return b.aggregate(d.Source), nil
	default:
		return "", fmt.Errorf("view %s: unknown kind %d", d.Name, d.Kind)
	}
}

// branch selects the observations of one parent type joined to its table.
// Natural-key tables are referenced by id stored as text; record-key tables
// by record_key. The parent_type predicate sits in the join so each
// observation lands in exactly one branch.
func (b Builder) branch(v types.Variant) string {
	var join, entity, entityJoin string
	if v.Key == types.KeyRecord {
		join = fmt.Sprintf("JOIN %s p ON o.parent_reference = p.record_key AND o.parent_type = '%s'", v.Table, v.Type)
		entity = "r.name"
		entityJoin = "LEFT JOIN resource r ON r.id = p.resource_id"
	} else {
		join = fmt.Sprintf("JOIN %s p ON o.parent_reference = CAST(p.id AS TEXT) AND o.parent_type = '%s'", v.Table, v.Type)
		entity = "c.name"
		entityJoin = "LEFT JOIN primary_ag_product c ON c.id = p.commodity_code"
	}
	return strings.Join([]string{
		"SELECT",
		fmt.Sprintf("  CAST('%s' AS TEXT) AS parent_type,", v.Type),
		"  prm.name AS parameter,",
		"  o.value AS value,",
		"  u.name AS unit,",
		"  dt.name AS dimension,",
		"  o.dimension_value AS dimension_value,",
		"  du.name AS dimension_unit,",
		fmt.Sprintf("  %s AS entity,", entity),
		"  p.geography_id AS geography_id,",
		"  g.county_name AS geography_name",
		"FROM observation o",
		join,
		"LEFT JOIN parameter prm ON prm.id = o.parameter_id",
		"LEFT JOIN unit u ON u.id = o.unit_id",
		"LEFT JOIN dimension_type dt ON dt.id = o.dimension_type_id",
		"LEFT JOIN unit du ON du.id = o.dimension_unit_id",
		entityJoin,
		"LEFT JOIN geography g ON g.geoid = p.geography_id",
	}, "\n")
}

func (b Builder) aggregate(source string) string {
	stddev := "STDDEV_SAMP(value)"
	if b.dialect == db.DialectSQLite {
		stddev = fmt.Sprintf(
			"CASE WHEN COUNT(value) > 1 THEN %s((SUM(value * value) - SUM(value) * SUM(value) / COUNT(value)) / (COUNT(value) - 1)) END",
			db.SQLiteSqrtFunc,
		)
	}
	return strings.Join([]string{
		"SELECT",
		"  entity,",
		"  geography_id,",
		"  parameter,",
		"  unit,",
		"  AVG(value) AS mean,",
		fmt.Sprintf("  %s AS stddev,", stddev),
		"  COUNT(*) AS observation_count",
		"FROM " + source,
		"GROUP BY entity, geography_id, parameter, unit",
	}, "\n")
}
