package engine

import (
	"testing"

	"github.com/my-db-dev/RapidDB/wire"
)

type noopDivider struct{}

func (noopDivider) Divide(fileID wire.FileID, pageID wire.PageID) error { return nil }

func TestOpenInMemoryLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	e := OpenInMemory(cfg, noopDivider{})

	buf := make([]byte, cfg.PageSize)
	buf[0] = 0x42
	e.Storage.WritePage(1, buf)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfigFillsZeroFields(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PageSize == 0 || cfg.MaxPageFileHandles == 0 {
		t.Fatalf("expected non-zero defaults, got %+v", cfg)
	}
}
