package predicate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arkilian/skyquery/pkg/types"
)

// PredsFromString parses the wire predicate format:
//
//	;col,op,val;col,op,val,or;...
//
// Each clause is separated by ';', the leading ';' is optional. A clause
// has three comma-separated fields (column name, operator token, literal
// value) plus an optional fourth field ("and"/"or", default "and") that
// selects how this clause joins the running row-level result. Column
// name RID_INDEX addresses the row's RID rather than a schema column.
// Aggregate clauses are collected separately and appended after every
// non-aggregate clause, regardless of the order they appear in s, so a
// Chain's short-circuit semantics stay well defined.
func PredsFromString(s string, schema types.Schema) ([]Atom, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ";")
	if s == "" {
		return nil, nil
	}

	clauses := strings.Split(s, ";")
	atoms := make([]Atom, 0, len(clauses))
	var aggAtoms []Atom
	for _, clause := range clauses {
		if clause == "" {
			continue
		}
		fields := strings.Split(clause, ",")
		if len(fields) != 3 && len(fields) != 4 {
			return nil, fmt.Errorf("%w: clause %q needs 3 or 4 fields, got %d", types.ErrColInfoBadFormat, clause, len(fields))
		}

		colName, opTok, valTok := fields[0], fields[1], fields[2]
		and := true
		if len(fields) == 4 {
			switch fields[3] {
			case "and":
				and = true
			case "or":
				and = false
			default:
				return nil, fmt.Errorf("%w: chain token %q must be \"and\" or \"or\"", types.ErrColInfoBadFormat, fields[3])
			}
		}

		op, err := OpFromString(opTok)
		if err != nil {
			return nil, err
		}

		var colIdx int
		var colType types.DataType
		if strings.EqualFold(colName, types.RIDIndexKeyword) {
			colIdx = types.RIDColIndex
			colType = types.SkyUInt64
		} else {
			col, ok := schema.ColByName(colName)
			if !ok {
				return nil, fmt.Errorf("%w: %s", types.ErrColNotPresent, colName)
			}
			colIdx = col.Idx
			colType = col.Type
		}

		val, err := parseCellValue(colType, valTok)
		if err != nil {
			return nil, err
		}

		atom := Atom{ColIdx: colIdx, Op: op, Val: val, And: and}
		if op.IsGlobalAgg() {
			aggAtoms = append(aggAtoms, atom)
		} else {
			atoms = append(atoms, atom)
		}
	}
	return append(atoms, aggAtoms...), nil
}

// PredsToString is the inverse of PredsFromString.
func PredsToString(atoms []Atom, schema types.Schema) string {
	var b strings.Builder
	for _, a := range atoms {
		b.WriteByte(';')

		name := types.RIDIndexKeyword
		if a.ColIdx != types.RIDColIndex {
			if col, ok := schema.ColByIdx(a.ColIdx); ok {
				name = col.Name
			}
		}
		b.WriteString(name)
		b.WriteByte(',')
		b.WriteString(a.Op.String())
		b.WriteByte(',')
		b.WriteString(formatCellValue(a.Val))
		b.WriteByte(',')
		if a.And {
			b.WriteString("and")
		} else {
			b.WriteString("or")
		}
	}
	return b.String()
}

func parseCellValue(t types.DataType, s string) (types.Cell, error) {
	switch {
	case t.IsFloat():
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Cell{}, fmt.Errorf("%w: %q as %s: %v", types.ErrColInfoBadFormat, s, t, err)
		}
		return types.FloatCell(t, f), nil
	case t == types.SkyBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return types.Cell{}, fmt.Errorf("%w: %q as bool: %v", types.ErrColInfoBadFormat, s, err)
		}
		return types.BoolCell(v), nil
	case t.IsSigned():
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return types.Cell{}, fmt.Errorf("%w: %q as %s: %v", types.ErrColInfoBadFormat, s, t, err)
		}
		return types.IntCell(t, i), nil
	case t.IsUnsigned():
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return types.Cell{}, fmt.Errorf("%w: %q as %s: %v", types.ErrColInfoBadFormat, s, t, err)
		}
		return types.UintCell(t, u), nil
	case t == types.SkyString || t == types.SkyDate:
		return types.StringCell(t, s), nil
	default:
		return types.Cell{}, fmt.Errorf("%w: %s", types.ErrUnknownDataType, t)
	}
}

func formatCellValue(c types.Cell) string {
	switch {
	case c.Type.IsFloat():
		return strconv.FormatFloat(c.F, 'g', -1, 64)
	case c.Type == types.SkyBool:
		return strconv.FormatBool(c.Bool())
	case c.Type.IsSigned():
		return strconv.FormatInt(c.I, 10)
	case c.Type.IsUnsigned():
		return strconv.FormatUint(c.U, 10)
	default:
		return c.S
	}
}
