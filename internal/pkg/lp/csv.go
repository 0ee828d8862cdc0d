package lp

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// RowRecord is the flat form of a row written by WriteCSV.
type RowRecord struct {
	Block string `csv:"block"`
	Row   string `csv:"row"`
	Lower string `csv:"lower"`
	Upper string `csv:"upper"`
	Terms string `csv:"terms"`
}

// VariableRecord is the flat form of a variable written by WriteVariablesCSV.
type VariableRecord struct {
	Block    string `csv:"block"`
	Variable string `csv:"variable"`
	Lower    string `csv:"lower"`
	Upper    string `csv:"upper"`
	Cost     string `csv:"cost"`
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, tm := range terms {
		parts[i] = fmt.Sprintf("%s*%s", formatBound(tm.Coef), tm.Var.Name)
	}
	return strings.Join(parts, " + ")
}

// RowRecords flattens the rows of every block.
func RowRecords(blocks ...*Block) []*RowRecord {
	var out []*RowRecord
	for _, b := range blocks {
		for _, r := range b.rows {
			out = append(out, &RowRecord{
				Block: b.Name,
				Row:   r.Name,
				Lower: formatBound(r.Lower),
				Upper: formatBound(r.Upper),
				Terms: formatTerms(r.terms),
			})
		}
	}
	return out
}

// WriteCSV dumps the rows of every block to w.
func WriteCSV(w io.Writer, blocks ...*Block) error {
	return gocsv.Marshal(RowRecords(blocks...), w)
}

// WriteVariablesCSV dumps the variables of every block with their objective
// coefficient to w.
func WriteVariablesCSV(w io.Writer, blocks ...*Block) error {
	var out []*VariableRecord
	for _, b := range blocks {
		for _, v := range b.vars {
			cost := 0.0
			if c, err := b.obj.Coefficient(v); err == nil {
				cost = c
			}
			out = append(out, &VariableRecord{
				Block:    b.Name,
				Variable: v.Name,
				Lower:    formatBound(v.Lower),
				Upper:    formatBound(v.Upper),
				Cost:     formatBound(cost),
			})
		}
	}
	return gocsv.Marshal(out, w)
}
