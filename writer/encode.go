package writer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"optionflow/config"
	"optionflow/models"
)

const (
	tableSpot   = "spot_price"
	tableFuture = "future_price"
	tableOption = "option_price"

	objectTimeLayout = "20060102150405"
)

// Object is one file handed to a sink.
type Object struct {
	Key             string
	Table           string
	Format          string
	Body            []byte
	ContentType     string
	ContentEncoding string
	Records         int
}

// Encoder turns a snapshot into the objects a sink stores: one gzip JSON
// object each for spot and future, gzip JSON lines for the options and,
// depending on the format, a Parquet file of the options.
type Encoder struct {
	Format             string
	Prefix             string
	Partitioned        bool
	ParquetCompression string
}

func NewEncoder(cfg config.WriterConfig) Encoder {
	format := cfg.Format
	if format == "" {
		format = config.FormatJSON
	}
	return Encoder{
		Format:             format,
		Prefix:             cfg.Prefix,
		Partitioned:        cfg.Partitioned,
		ParquetCompression: cfg.Parquet.Compression,
	}
}

func (e Encoder) Encode(snap models.Snapshot) ([]Object, error) {
	created := snap.CreatedAt().In(models.JST)
	var objects []Object

	if e.Format == config.FormatJSON || e.Format == config.FormatBoth {
		spot, err := gzipJSON(models.NewSpotRow(snap.Spot()))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tableSpot, err)
		}
		future, err := gzipJSON(models.NewFutureRow(snap.Future()))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tableFuture, err)
		}

		opts := snap.Options()
		rows := make([]interface{}, len(opts))
		for i, o := range opts {
			rows[i] = models.NewOptionRow(o)
		}
		options, err := gzipJSON(rows...)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tableOption, err)
		}

		objects = append(objects,
			e.jsonObject(tableSpot, created, spot, 1),
			e.jsonObject(tableFuture, created, future, 1),
			e.jsonObject(tableOption, created, options, len(opts)),
		)
	}

	if e.Format == config.FormatParquet || e.Format == config.FormatBoth {
		opts := snap.Options()
		data, err := encodeOptionsParquet(opts, e.ParquetCompression)
		if err != nil {
			return nil, fmt.Errorf("encode %s parquet: %w", tableOption, err)
		}
		objects = append(objects, Object{
			Key:         e.key(fmt.Sprintf("%s_%s.parquet", tableOption, created.Format(objectTimeLayout)), created),
			Table:       tableOption,
			Format:      config.FormatParquet,
			Body:        data,
			ContentType: "application/octet-stream",
			Records:     len(opts),
		})
	}

	return objects, nil
}

func (e Encoder) jsonObject(table string, created time.Time, body []byte, records int) Object {
	return Object{
		Key:             e.key(fmt.Sprintf("%s_%s.json.gz", table, created.Format(objectTimeLayout)), created),
		Table:           table,
		Format:          config.FormatJSON,
		Body:            body,
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		Records:         records,
	}
}

func (e Encoder) key(name string, created time.Time) string {
	parts := []string{}
	if e.Prefix != "" {
		parts = append(parts, e.Prefix)
	}
	if e.Partitioned {
		parts = append(parts,
			fmt.Sprintf("year=%04d", created.Year()),
			fmt.Sprintf("month=%02d", created.Month()),
			fmt.Sprintf("day=%02d", created.Day()),
		)
	}
	return path.Join(append(parts, name)...)
}

// gzipJSON writes each value as one JSON line.
func gzipJSON(values ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	enc.SetEscapeHTML(false)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
