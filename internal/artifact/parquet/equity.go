package parquet

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/sawpanic/backtest-engine/internal/engine"
)

// equitySchema lays out one row per exec-bar equity sample: ts_close,
// equity, cash, unrealized, drawdown. Mark, liquidation price and leverage
// ride along since internal/engine already carries them on EquityPoint and
// internal/perf's liquidation-proximity metrics are derived from exactly
// these columns.
func equitySchema() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("ts_close", parquet.Repetitions.Optional, pqschema.NewIntLogicalType(64, true), parquet.Types.Int64, 0, -1)),
		pqschema.NewFloat64Node("equity", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("cash", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("unrealized", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("drawdown", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("mark", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("liquidation_price", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("leverage", parquet.Repetitions.Optional, -1),
	}, -1))
}

// WriteEquity writes one row per EquityPoint to destFile.
func WriteEquity(destFile string, points []engine.EquityPoint) error {
	f, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destFile, err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy))

	pw := pqfile.NewParquetWriter(f, equitySchema(), pqfile.WithWriterProps(props))
	defer pw.Close()

	rgw := pw.AppendBufferedRowGroup()
	for _, pt := range points {
		if err := writeEquityRow(rgw, pt); err != nil {
			return fmt.Errorf("writing equity point at ts_close=%d: %w", pt.TsClose, err)
		}
	}
	rgw.Close()

	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("flushing %s: %w", destFile, err)
	}
	return nil
}

func writeEquityRow(rgw pqfile.BufferedRowGroupWriter, pt engine.EquityPoint) error {
	equity, _ := pt.Equity.Float64()
	cash, _ := pt.Cash.Float64()
	unrealized, _ := pt.Unrealized.Float64()
	drawdown, _ := pt.Drawdown.Float64()
	mark, _ := pt.Mark.Float64()
	liq, _ := pt.LiquidationPrice.Float64()
	leverage, _ := pt.Leverage.Float64()

	cw, _ := rgw.Column(0)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{pt.TsClose}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{equity}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{cash}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{unrealized}, []int16{1}, nil)
	cw, _ = rgw.Column(4)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{drawdown}, []int16{1}, nil)
	cw, _ = rgw.Column(5)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{mark}, []int16{1}, nil)
	cw, _ = rgw.Column(6)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{liq}, []int16{1}, nil)
	cw, _ = rgw.Column(7)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{leverage}, []int16{1}, nil)
	return nil
}
