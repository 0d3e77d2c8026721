package writer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"optionflow/models"

	"github.com/shopspring/decimal"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// OptionParquetRecord is the columnar layout of an option quote. Absent
// values are null.
type OptionParquetRecord struct {
	Type           int32    `parquet:"name=type, type=INT32"`
	TargetPrice    int32    `parquet:"name=target_price, type=INT32"`
	IsATM          bool     `parquet:"name=is_atm, type=BOOLEAN"`
	Price          *float64 `parquet:"name=price, type=DOUBLE, repetitiontype=OPTIONAL"`
	PriceTime      *int64   `parquet:"name=price_time, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
	Diff           *float64 `parquet:"name=diff, type=DOUBLE, repetitiontype=OPTIONAL"`
	DiffRate       *float64 `parquet:"name=diff_rate, type=DOUBLE, repetitiontype=OPTIONAL"`
	IV             *float64 `parquet:"name=iv, type=DOUBLE, repetitiontype=OPTIONAL"`
	Bid            *float64 `parquet:"name=bid, type=DOUBLE, repetitiontype=OPTIONAL"`
	BidVolume      *int64   `parquet:"name=bid_volume, type=INT64, repetitiontype=OPTIONAL"`
	BidIV          *float64 `parquet:"name=bid_iv, type=DOUBLE, repetitiontype=OPTIONAL"`
	Ask            *float64 `parquet:"name=ask, type=DOUBLE, repetitiontype=OPTIONAL"`
	AskVolume      *int64   `parquet:"name=ask_volume, type=INT64, repetitiontype=OPTIONAL"`
	AskIV          *float64 `parquet:"name=ask_iv, type=DOUBLE, repetitiontype=OPTIONAL"`
	Volume         *int64   `parquet:"name=volume, type=INT64, repetitiontype=OPTIONAL"`
	Positions      *int64   `parquet:"name=positions, type=INT64, repetitiontype=OPTIONAL"`
	Quotation      *float64 `parquet:"name=quotation, type=DOUBLE, repetitiontype=OPTIONAL"`
	QuotationDate  int32    `parquet:"name=quotation_date, type=INT32, convertedtype=DATE"`
	Delta          *float64 `parquet:"name=delta, type=DOUBLE, repetitiontype=OPTIONAL"`
	Gamma          *float64 `parquet:"name=gamma, type=DOUBLE, repetitiontype=OPTIONAL"`
	Theta          *float64 `parquet:"name=theta, type=DOUBLE, repetitiontype=OPTIONAL"`
	Vega           *float64 `parquet:"name=vega, type=DOUBLE, repetitiontype=OPTIONAL"`
	LastTradingDay int32    `parquet:"name=last_trading_day, type=INT32, convertedtype=DATE"`
	CreatedAt      int64    `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

func newOptionParquetRecord(q models.OptionQuote) OptionParquetRecord {
	return OptionParquetRecord{
		Type:           int32(q.Side),
		TargetPrice:    int32(q.Strike),
		IsATM:          q.IsATM,
		Price:          float(q.Price),
		PriceTime:      millis(q.PriceTime),
		Diff:           float(q.Diff),
		DiffRate:       float(q.DiffRate),
		IV:             float(q.IV),
		Bid:            float(q.Bid),
		BidVolume:      int64Ptr(q.BidVolume),
		BidIV:          float(q.BidIV),
		Ask:            float(q.Ask),
		AskVolume:      int64Ptr(q.AskVolume),
		AskIV:          float(q.AskIV),
		Volume:         int64Ptr(q.Volume),
		Positions:      int64Ptr(q.OpenInterest),
		Quotation:      float(q.SettlementPrice),
		QuotationDate:  epochDays(q.SettlementDate),
		Delta:          float(q.Delta),
		Gamma:          float(q.Gamma),
		Theta:          float(q.Theta),
		Vega:           float(q.Vega),
		LastTradingDay: epochDays(q.LastTradingDay),
		CreatedAt:      q.CreatedAt.UnixMilli(),
	}
}

// memoryFileWriter implements source.ParquetFile over an in-memory buffer.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }

// Seek only reports the write position; the writer never seeks back.
func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

func encodeOptionsParquet(opts []models.OptionQuote, compression string) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(OptionParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, q := range opts {
		if err := pw.Write(newOptionParquetRecord(q)); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "zstd":
		return parquet.CompressionCodec_ZSTD
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

func float(o models.Opt[decimal.Decimal]) *float64 {
	d, ok := o.Get()
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func int64Ptr(o models.Opt[int64]) *int64 {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

func millis(o models.Opt[time.Time]) *int64 {
	t, ok := o.Get()
	if !ok {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func epochDays(t time.Time) int32 {
	t = t.In(models.JST)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int32(d.Unix() / 86400)
}
