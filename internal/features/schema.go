package features

// SchemaVersion identifies the feature layout produced by this package.
// It travels with every trained model so a layout change is detected at
// load time instead of surfacing as silently wrong predictions.
const SchemaVersion = 1

// Mode selects whether encoded vectors carry the label column.
type Mode int

const (
	// Training vectors carry the observed value as their first column.
	Training Mode = iota
	// Inference vectors carry feature columns only.
	Inference
)

func (m Mode) String() string {
	if m == Training {
		return "training"
	}
	return "inference"
}

// LabelColumn is the response column present only in training vectors.
const LabelColumn = "value"

// SensorColumnPrefix prefixes the one-hot indicator column of each
// vocabulary entry, e.g. "sensor_id_pressure-1".
const SensorColumnPrefix = "sensor_id_"

// calendarColumns are the UTC timestamp decomposition features, in the
// frozen order shared by training and inference.
var calendarColumns = []string{
	"year", "month", "day", "hour", "minute", "second", "dayofweek",
}

// lagColumns are the windowed history features, in the frozen order.
var lagColumns = []string{
	"prev_value_1", "prev_value_2", "prev_value_3",
	"rate_of_change_1", "rate_of_change_2",
}

// lagDepth is how many prior values a row needs before it can be encoded.
const lagDepth = 3

// Schema is the frozen, ordered column set of a feature matrix. Column
// order and presence are fixed once training completes; inference vectors
// must reproduce exactly the same named columns in the same order with the
// label absent.
type Schema struct {
	Version int      `json:"version"`
	Columns []string `json:"columns"`
}

// NewSchema builds the column layout for a vocabulary:
// [value?] + calendar(7) + lag/rate(5) + one indicator per vocabulary entry.
func NewSchema(vocab *Vocabulary, mode Mode) *Schema {
	cols := make([]string, 0, 1+len(calendarColumns)+len(lagColumns)+vocab.Size())
	if mode == Training {
		cols = append(cols, LabelColumn)
	}
	cols = append(cols, calendarColumns...)
	cols = append(cols, lagColumns...)
	for _, id := range vocab.IDs() {
		cols = append(cols, SensorColumnPrefix+id)
	}
	return &Schema{Version: SchemaVersion, Columns: cols}
}

// HasLabel reports whether the schema carries the label column.
func (s *Schema) HasLabel() bool {
	return len(s.Columns) > 0 && s.Columns[0] == LabelColumn
}

// FeatureColumns returns the column names without the label.
func (s *Schema) FeatureColumns() []string {
	cols := s.Columns
	if s.HasLabel() {
		cols = cols[1:]
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// WithoutLabel returns the inference-shaped schema: the same columns in
// the same order with the label column removed.
func (s *Schema) WithoutLabel() *Schema {
	return &Schema{Version: s.Version, Columns: s.FeatureColumns()}
}

// Equal reports whether two schemas have identical versions and column
// sequences.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || s.Version != other.Version || len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	return true
}

// ColumnIndex returns the position of a named column.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Matrix is an ordered sequence of feature vectors sharing one schema.
// Sensors is parallel to Rows and records which sensor produced each row.
type Matrix struct {
	Schema  *Schema
	Sensors []string
	Rows    [][]float64
}

// NumRows returns the number of encoded rows.
func (m *Matrix) NumRows() int { return len(m.Rows) }

// Conform checks the matrix columns against a frozen schema. A mismatch is
// an abort-class error: the whole batch is unusable, not individual rows.
func (m *Matrix) Conform(frozen *Schema) error {
	if m.Schema.Equal(frozen) {
		return nil
	}
	return &SchemaMismatchError{Want: frozen.Columns, Got: m.Schema.Columns}
}

// Labels extracts the label column from a training matrix.
func (m *Matrix) Labels() ([]float64, error) {
	if !m.Schema.HasLabel() {
		return nil, &SchemaMismatchError{
			Want: append([]string{LabelColumn}, m.Schema.Columns...),
			Got:  m.Schema.Columns,
		}
	}
	labels := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		labels[i] = row[0]
	}
	return labels, nil
}

// FeatureRows returns the rows with the label column stripped. When the
// schema carries no label the rows are returned as-is.
func (m *Matrix) FeatureRows() [][]float64 {
	if !m.Schema.HasLabel() {
		return m.Rows
	}
	out := make([][]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[1:]
	}
	return out
}
