package rowstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NormalizeRow converts a row to the cell types a JSON round trip yields:
// numbers become float64, strings stay strings, bools stay bools, nil stays
// nil. Anything else is rejected.
func NormalizeRow(row []any) ([]any, error) {
	data, err := EncodeRow(row)
	if err != nil {
		return nil, err
	}
	return DecodeRow(data)
}

// EncodeRow serializes a row as a JSON array.
func EncodeRow(row []any) ([]byte, error) {
	for i, cell := range row {
		switch cell.(type) {
		case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		default:
			return nil, fmt.Errorf("cell %d: unsupported type %T", i, cell)
		}
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return data, nil
}

// DecodeRow parses a JSON array produced by EncodeRow.
func DecodeRow(data []byte) ([]any, error) {
	var row []any
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	if row == nil {
		row = []any{}
	}
	return row, nil
}

// CellString renders a cell the way a spreadsheet displays it: strings
// verbatim, whole numbers without a fractional part, bools as true/false
// and nil as the empty string.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

// CellEqual reports whether two cells display the same.
func CellEqual(a, b any) bool {
	return CellString(a) == CellString(b)
}

// RowID returns the id cell of a row, or "" for an empty row.
func RowID(row []any) string {
	if len(row) <= IDColumn {
		return ""
	}
	return CellString(row[IDColumn])
}
