package core

// DBOrdering sorts query results on a single column.
type DBOrdering struct {
	Field      string
	Ascending  bool
	NullsFirst bool
}

func Asc(field string) DBOrdering  { return DBOrdering{Field: field, Ascending: true} }
func Desc(field string) DBOrdering { return DBOrdering{Field: field} }

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	nulls := "NULLS LAST"
	if ord.NullsFirst {
		nulls = "NULLS FIRST"
	}
	return ord.Field + " " + direction + " " + nulls
}
