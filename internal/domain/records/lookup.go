package records

// Lookup tables are read by the canonical views. They are seeded by
// external tooling; this module only migrates and reads them.

type Parameter struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (Parameter) TableName() string { return "parameter" }

type Unit struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (Unit) TableName() string { return "unit" }

// Commodity rows back census/survey commodity codes.
type Commodity struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`
}

func (Commodity) TableName() string { return "primary_ag_product" }

type Geography struct {
	GeoID      string `gorm:"column:geoid;primaryKey" json:"geoid"`
	StateName  string `gorm:"column:state_name" json:"state_name,omitempty"`
	CountyName string `gorm:"column:county_name" json:"county_name,omitempty"`
}

func (Geography) TableName() string { return "geography" }

type Resource struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`
}

func (Resource) TableName() string { return "resource" }

type DimensionType struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`
}

func (DimensionType) TableName() string { return "dimension_type" }
