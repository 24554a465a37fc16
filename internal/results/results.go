// Package results exports score grids and aligned sets as Arrow data: IPC
// files on disk and Flight DoPut to a remote collector.
package results

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"boxtrace/internal/align"
	"boxtrace/internal/metrics"
)

// Grid is one named layer-by-head score matrix, rows indexed by layer.
type Grid struct {
	Name  string
	Cells [][]float64
}

func gridSchema(name string) *arrow.Schema {
	md := arrow.NewMetadata([]string{"grid"}, []string{name})
	return arrow.NewSchema([]arrow.Field{
		{Name: "layer", Type: arrow.PrimitiveTypes.Int32},
		{Name: "head", Type: arrow.PrimitiveTypes.Int32},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
	}, &md)
}

// GridRecord flattens a grid into an Arrow record with layer, head and score
// columns. The caller releases the record.
func GridRecord(name string, cells [][]float64) (arrow.Record, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, fmt.Errorf("grid %q is empty", name)
	}
	cols := len(cells[0])

	b := array.NewRecordBuilder(memory.DefaultAllocator, gridSchema(name))
	defer b.Release()

	layers := b.Field(0).(*array.Int32Builder)
	heads := b.Field(1).(*array.Int32Builder)
	scores := b.Field(2).(*array.Float64Builder)

	for l, row := range cells {
		if len(row) != cols {
			return nil, fmt.Errorf("grid %q: row %d has %d columns, want %d", name, l, len(row), cols)
		}
		for h, v := range row {
			layers.Append(int32(l))
			heads.Append(int32(h))
			scores.Append(v)
		}
	}
	return b.NewRecord(), nil
}

// WriteGridsIPC writes every grid as one record of an Arrow IPC file. The
// file carries a single schema, so the grid name travels as a column rather
// than as schema metadata.
func WriteGridsIPC(path string, grids []Grid) error {
	if len(grids) == 0 {
		return fmt.Errorf("no grids to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	md := arrow.NewMetadata([]string{"kind"}, []string{"score_grids"})
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "grid", Type: arrow.BinaryTypes.String},
		{Name: "layer", Type: arrow.PrimitiveTypes.Int32},
		{Name: "head", Type: arrow.PrimitiveTypes.Int32},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
	}, &md)

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("ipc writer: %w", err)
	}

	for _, g := range grids {
		rec, err := namedGridRecord(schema, g)
		if err != nil {
			w.Close()
			return err
		}
		err = w.Write(rec)
		rec.Release()
		if err != nil {
			w.Close()
			return fmt.Errorf("write grid %q: %w", g.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close ipc writer: %w", err)
	}

	metrics.RecordGridExport(len(grids))
	return nil
}

func namedGridRecord(schema *arrow.Schema, g Grid) (arrow.Record, error) {
	if len(g.Cells) == 0 || len(g.Cells[0]) == 0 {
		return nil, fmt.Errorf("grid %q is empty", g.Name)
	}
	cols := len(g.Cells[0])

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	names := b.Field(0).(*array.StringBuilder)
	layers := b.Field(1).(*array.Int32Builder)
	heads := b.Field(2).(*array.Int32Builder)
	scores := b.Field(3).(*array.Float64Builder)

	for l, row := range g.Cells {
		if len(row) != cols {
			return nil, fmt.Errorf("grid %q: row %d has %d columns, want %d", g.Name, l, len(row), cols)
		}
		for h, v := range row {
			names.Append(g.Name)
			layers.Append(int32(l))
			heads.Append(int32(h))
			scores.Append(v)
		}
	}
	return b.NewRecord(), nil
}

func alignedSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "base_ids", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
		{Name: "source_ids", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
		{Name: "base_pos", Type: arrow.PrimitiveTypes.Int32},
		{Name: "source_pos", Type: arrow.PrimitiveTypes.Int32},
		{Name: "label", Type: arrow.PrimitiveTypes.Int32},
		{Name: "intervention_id", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
}

// AlignedRecord converts an aligned set into one Arrow record with list-typed
// token columns, one row per example. The caller releases the record.
func AlignedRecord(set *align.AlignedSet) (arrow.Record, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(memory.DefaultAllocator, alignedSchema())
	defer b.Release()

	appendIDList := func(lb *array.ListBuilder, ids []int) {
		vb := lb.ValueBuilder().(*array.Int32Builder)
		lb.Append(true)
		for _, id := range ids {
			vb.Append(int32(id))
		}
	}

	for i := 0; i < set.Len(); i++ {
		appendIDList(b.Field(0).(*array.ListBuilder), set.BaseIDs[i])
		appendIDList(b.Field(1).(*array.ListBuilder), set.SourceIDs[i])
		b.Field(2).(*array.Int32Builder).Append(int32(set.BasePos[i]))
		b.Field(3).(*array.Int32Builder).Append(int32(set.SourcePos[i]))
		b.Field(4).(*array.Int32Builder).Append(int32(set.Labels[i]))
		b.Field(5).(*array.Int32Builder).Append(int32(set.InterventionIDs[i]))
	}

	return b.NewRecord(), nil
}

// WriteAlignedIPC persists an aligned set as an Arrow IPC file.
func WriteAlignedIPC(path string, set *align.AlignedSet) error {
	rec, err := AlignedRecord(set)
	if err != nil {
		return err
	}
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("ipc writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("write aligned set: %w", err)
	}
	return w.Close()
}
