package output

import (
	"github.com/rotisserie/eris"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/calder-retail/replenish-cli/internal/model"
)

type aggregatedParquetRecord struct {
	RunDate       string `parquet:"name=run_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	SKU           string `parquet:"name=sku, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalQuantity int32  `parquet:"name=total_quantity, type=INT32"`
}

type netDemandParquetRecord struct {
	RunDate   string `parquet:"name=run_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	SKU       string `parquet:"name=sku, type=BYTE_ARRAY, convertedtype=UTF8"`
	NetDemand int32  `parquet:"name=net_demand, type=INT32"`
}

type orderParquetRecord struct {
	RunDate    string `parquet:"name=run_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	SupplierID string `parquet:"name=supplier_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SKU        string `parquet:"name=sku, type=BYTE_ARRAY, convertedtype=UTF8"`
	Quantity   int32  `parquet:"name=quantity, type=INT32"`
}

// writeParquet writes rows to a Snappy-compressed Parquet file. schema is a
// pointer to the zero value of the row struct.
func writeParquet[T any](path string, schema *T, rows []T) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}

	pw, err := writer.NewParquetWriter(fw, schema, 1)
	if err != nil {
		fw.Close()
		return eris.Wrapf(err, "output: parquet writer for %s", path)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			pw.WriteStop()
			fw.Close()
			return eris.Wrapf(err, "output: write parquet row of %s", path)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return eris.Wrapf(err, "output: finalize %s", path)
	}
	return eris.Wrapf(fw.Close(), "output: close %s", path)
}

func writeAggregatedParquet(path string, rows []model.AggregatedDemand) error {
	records := make([]aggregatedParquetRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, aggregatedParquetRecord{
			RunDate:       r.RunDate,
			SKU:           r.SKU,
			TotalQuantity: int32(r.TotalQuantity),
		})
	}
	return writeParquet(path, new(aggregatedParquetRecord), records)
}

func writeNetDemandParquet(path string, rows []model.NetDemand) error {
	records := make([]netDemandParquetRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, netDemandParquetRecord{
			RunDate:   r.RunDate,
			SKU:       r.SKU,
			NetDemand: int32(r.NetDemand),
		})
	}
	return writeParquet(path, new(netDemandParquetRecord), records)
}

func writeOrdersParquet(path string, orders []model.SupplierOrder) error {
	records := make([]orderParquetRecord, 0, len(orders))
	for _, o := range orders {
		records = append(records, orderParquetRecord{
			RunDate:    o.RunDate,
			SupplierID: o.SupplierID,
			SKU:        o.SKU,
			Quantity:   int32(o.Quantity),
		})
	}
	return writeParquet(path, new(orderParquetRecord), records)
}
