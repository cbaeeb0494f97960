// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/age"

	"github.com/bureau-foundation/teamflow/lib/clock"
	"github.com/bureau-foundation/teamflow/lib/codec"
	"github.com/bureau-foundation/teamflow/lib/datastore"
)

const (
	// Format names the snapshot body.
	Format = "teamflow-snapshot"

	// Version is the body layout version written by Export.
	Version = 1
)

var (
	magic     = []byte("TFSNAP")
	ageHeader = []byte("age-encryption.org/")
)

// Header opens the CBOR sequence.
type Header struct {
	Format    string   `json:"format"`
	Version   int      `json:"version"`
	CreatedAt string   `json:"created_at"`
	Tables    []string `json:"tables"`
}

// Record is one row, or, with an empty Table, the closing record whose
// Rows counts every row before it.
type Record struct {
	Table string           `json:"table"`
	Row   codec.RawMessage `json:"row,omitempty"`
	Rows  int              `json:"rows,omitempty"`
}

// Options configures Export and Import.
type Options struct {
	// Compression applies to Export; Import reads the tag.
	Compression CompressionTag

	// Recipients encrypts the export when non-empty.
	Recipients []age.Recipient

	// Identities decrypts an encrypted import.
	Identities []age.Identity

	Logger *slog.Logger
}

// Summary counts rows per table.
type Summary struct {
	Header Header
	Rows   map[string]int
}

// Total returns the row count across tables.
func (s Summary) Total() int {
	total := 0
	for _, count := range s.Rows {
		total += count
	}
	return total
}

// ParseRecipients parses age1... public keys.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// Export writes every table of store to w.
func Export(ctx context.Context, store *datastore.Store, w io.Writer, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var sink io.Writer = w
	var envelope io.WriteCloser
	if len(opts.Recipients) > 0 {
		var err error
		envelope, err = age.Encrypt(w, opts.Recipients...)
		if err != nil {
			return Summary{}, fmt.Errorf("creating age encryptor: %w", err)
		}
		sink = envelope
	}

	if _, err := sink.Write(append(bytes.Clone(magic), byte(opts.Compression))); err != nil {
		return Summary{}, fmt.Errorf("writing snapshot magic: %w", err)
	}
	body, err := compressWriter(sink, opts.Compression)
	if err != nil {
		return Summary{}, err
	}

	header := Header{
		Format:    Format,
		Version:   Version,
		CreatedAt: clock.Timestamp(store.Clock().Now()),
		Tables:    datastore.Tables(),
	}
	summary := Summary{Header: header, Rows: make(map[string]int)}
	encoder := codec.NewEncoder(body)
	if err := encoder.Encode(header); err != nil {
		return Summary{}, fmt.Errorf("writing header: %w", err)
	}

	total := 0
	for _, table := range header.Tables {
		err := store.Dump(ctx, table, func(payload codec.RawMessage) error {
			total++
			summary.Rows[table]++
			return encoder.Encode(Record{Table: table, Row: payload})
		})
		if err != nil {
			return Summary{}, fmt.Errorf("exporting %s: %w", table, err)
		}
	}
	if err := encoder.Encode(Record{Rows: total}); err != nil {
		return Summary{}, fmt.Errorf("writing trailer: %w", err)
	}

	if err := body.Close(); err != nil {
		return Summary{}, fmt.Errorf("flushing %s compressor: %w", opts.Compression, err)
	}
	if envelope != nil {
		if err := envelope.Close(); err != nil {
			return Summary{}, fmt.Errorf("finalizing age encryption: %w", err)
		}
	}
	logger.Info("snapshot exported",
		"rows", total,
		"compression", opts.Compression.String(),
		"encrypted", envelope != nil,
	)
	return summary, nil
}

// Import replaces the contents of store with the snapshot read from r.
func Import(ctx context.Context, store *datastore.Store, r io.Reader, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	source := bufio.NewReader(r)
	encrypted := false
	if prefix, _ := source.Peek(len(ageHeader)); bytes.Equal(prefix, ageHeader) {
		if len(opts.Identities) == 0 {
			return Summary{}, errors.New("snapshot is encrypted; an age identity is required")
		}
		plaintext, err := age.Decrypt(source, opts.Identities...)
		if err != nil {
			return Summary{}, fmt.Errorf("decrypting snapshot: %w", err)
		}
		source = bufio.NewReader(plaintext)
		encrypted = true
	}

	prefix := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(source, prefix); err != nil {
		return Summary{}, fmt.Errorf("reading snapshot magic: %w", err)
	}
	if !bytes.Equal(prefix[:len(magic)], magic) {
		return Summary{}, errors.New("not a teamflow snapshot")
	}
	tag := CompressionTag(prefix[len(magic)])
	body, release, err := decompressReader(source, tag)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	decoder := codec.NewDecoder(body)
	var header Header
	if err := decoder.Decode(&header); err != nil {
		return Summary{}, fmt.Errorf("reading header: %w", err)
	}
	if header.Format != Format {
		return Summary{}, fmt.Errorf("unexpected snapshot format %q", header.Format)
	}
	if header.Version != Version {
		return Summary{}, fmt.Errorf("unsupported snapshot version %d (this build reads %d)", header.Version, Version)
	}

	summary := Summary{Header: header, Rows: make(map[string]int)}
	err = store.Restore(ctx, func(put func(string, codec.RawMessage) error) error {
		total := 0
		for {
			var record Record
			if err := decoder.Decode(&record); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return errors.New("snapshot is truncated: missing trailer")
				}
				return fmt.Errorf("reading record %d: %w", total+1, err)
			}
			if record.Table == "" {
				if record.Rows != total {
					return fmt.Errorf("snapshot trailer counts %d rows, read %d", record.Rows, total)
				}
				return nil
			}
			if err := put(record.Table, record.Row); err != nil {
				return fmt.Errorf("restoring %s row: %w", record.Table, err)
			}
			total++
			summary.Rows[record.Table]++
		}
	})
	if err != nil {
		return Summary{}, err
	}
	logger.Info("snapshot imported",
		"rows", summary.Total(),
		"created_at", header.CreatedAt,
		"compression", tag.String(),
		"encrypted", encrypted,
	)
	return summary, nil
}
