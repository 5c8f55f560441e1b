// Package parquet writes the columnar trades.parquet and equity.parquet
// artifacts using Arrow's parquet writer: a GroupNode schema plus a
// buffered row group flushed once per file.
package parquet

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/sawpanic/backtest-engine/internal/exchange"
)

// tradesSchema lays out one row per closed internal/exchange.Trade, with
// every lifecycle field from entry to exit.
func tradesSchema() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("side", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.NewFloat64Node("entry_price", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("exit_price", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("size", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("entry_ts", parquet.Repetitions.Optional, pqschema.NewIntLogicalType(64, true), parquet.Types.Int64, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("exit_ts", parquet.Repetitions.Optional, pqschema.NewIntLogicalType(64, true), parquet.Types.Int64, 0, -1)),
		pqschema.NewInt32Node("duration_bars", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("entry_fee", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("exit_fee", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("funding", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("realized_pnl_usdt", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("mae", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("mfe", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("exit_reason", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
	}, -1))
}

// WriteTrades writes every closed Trade, one row per trade, to destFile.
func WriteTrades(destFile string, trades []exchange.Trade) error {
	f, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destFile, err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy))

	pw := pqfile.NewParquetWriter(f, tradesSchema(), pqfile.WithWriterProps(props))
	defer pw.Close()

	rgw := pw.AppendBufferedRowGroup()
	for _, t := range trades {
		if err := writeTradeRow(rgw, t); err != nil {
			return fmt.Errorf("writing trade %s: %w", t.ID, err)
		}
	}
	rgw.Close()

	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("flushing %s: %w", destFile, err)
	}
	return nil
}

func writeTradeRow(rgw pqfile.BufferedRowGroupWriter, t exchange.Trade) error {
	entryPrice, _ := t.EntryPrice.Float64()
	exitPrice, _ := t.ExitPrice.Float64()
	size, _ := t.Size.Float64()
	entryFee, _ := t.EntryFee.Float64()
	exitFee, _ := t.ExitFee.Float64()
	funding, _ := t.Funding.Float64()
	pnl, _ := t.RealizedPnLUSDT.Float64()
	mae, _ := t.MAE.Float64()
	mfe, _ := t.MFE.Float64()

	cw, _ := rgw.Column(0)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{[]byte(t.ID)}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{[]byte(string(t.Side))}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{entryPrice}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{exitPrice}, []int16{1}, nil)
	cw, _ = rgw.Column(4)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{size}, []int16{1}, nil)
	cw, _ = rgw.Column(5)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{t.EntryTs}, []int16{1}, nil)
	cw, _ = rgw.Column(6)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{t.ExitTs}, []int16{1}, nil)
	cw, _ = rgw.Column(7)
	cw.(*pqfile.Int32ColumnChunkWriter).WriteBatch([]int32{int32(t.DurationBars)}, []int16{1}, nil)
	cw, _ = rgw.Column(8)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{entryFee}, []int16{1}, nil)
	cw, _ = rgw.Column(9)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{exitFee}, []int16{1}, nil)
	cw, _ = rgw.Column(10)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{funding}, []int16{1}, nil)
	cw, _ = rgw.Column(11)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{pnl}, []int16{1}, nil)
	cw, _ = rgw.Column(12)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{mae}, []int16{1}, nil)
	cw, _ = rgw.Column(13)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{mfe}, []int16{1}, nil)
	cw, _ = rgw.Column(14)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{[]byte(string(t.ExitReason))}, []int16{1}, nil)
	return nil
}
