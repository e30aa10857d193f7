package contracts

// ColumnType enumerates the SQL column types an entity kind can declare
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
)

// Column describes one attribute column of an entity-kind table
type Column struct {
	Name string
	Type ColumnType
}

// Kind describes one entity kind: its table, natural key and attribute
// columns. The store derives schema, upserts and completeness queries from
// this descriptor, so adding a kind is a declaration, not a new repository.
type Kind struct {
	Name       string   // table name
	IDColumn   string   // entity id column, part of the natural key
	DateColumn string   // trading date column, part of the natural key
	KeyColumns []string // natural key in declaration order
	Columns    []Column // non-key attribute columns
}

// AllColumns returns key columns followed by attribute columns
func (k Kind) AllColumns() []string {
	cols := make([]string, 0, len(k.KeyColumns)+len(k.Columns))
	cols = append(cols, k.KeyColumns...)
	for _, c := range k.Columns {
		cols = append(cols, c.Name)
	}
	return cols
}

// Entity kinds persisted by the store. Natural key order follows the
// upstream data layout for each kind.
var (
	// KindIndexDaily holds one snapshot per (trade_date, board index)
	KindIndexDaily = Kind{
		Name:       "index_daily",
		IDColumn:   "index_id",
		DateColumn: "trade_date",
		KeyColumns: []string{"trade_date", "index_id"},
		Columns: []Column{
			{Name: "index_name", Type: TypeText},
			{Name: "open_price", Type: TypeReal},
			{Name: "high_price", Type: TypeReal},
			{Name: "low_price", Type: TypeReal},
			{Name: "close_price", Type: TypeReal},
			{Name: "volume", Type: TypeInteger},
			{Name: "turnover", Type: TypeReal},
			{Name: "change_pct", Type: TypeReal},
		},
	}

	// KindStockDaily holds one daily bar per (stock, trade_date)
	KindStockDaily = Kind{
		Name:       "stock_daily",
		IDColumn:   "stock_code",
		DateColumn: "trade_date",
		KeyColumns: []string{"stock_code", "trade_date"},
		Columns: []Column{
			{Name: "open_price", Type: TypeReal},
			{Name: "high_price", Type: TypeReal},
			{Name: "low_price", Type: TypeReal},
			{Name: "close_price", Type: TypeReal},
			{Name: "volume", Type: TypeInteger},
			{Name: "turnover", Type: TypeReal},
		},
	}

	// KindBoardMember holds board membership per (board, trade_date, stock)
	KindBoardMember = Kind{
		Name:       "board_members",
		IDColumn:   "board_id",
		DateColumn: "trade_date",
		KeyColumns: []string{"board_id", "trade_date", "stock_code"},
		Columns: []Column{
			{Name: "stock_name", Type: TypeText},
			{Name: "weight", Type: TypeReal},
		},
	}

	// KindTradeCalendar holds one row per (exchange, calendar date)
	KindTradeCalendar = Kind{
		Name:       "trade_calendar",
		IDColumn:   "exchange",
		DateColumn: "trade_date",
		KeyColumns: []string{"exchange", "trade_date"},
		Columns: []Column{
			{Name: "is_open", Type: TypeInteger},
		},
	}
)

// Kinds lists every registered entity kind, used for schema creation
var Kinds = []Kind{
	KindIndexDaily,
	KindStockDaily,
	KindBoardMember,
	KindTradeCalendar,
}

// KindByName looks up a registered kind by its table name
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}
