package core

import (
	"sync/atomic"

	"github.com/my-db-dev/RapidDB/engine"
	"github.com/my-db-dev/RapidDB/keytype"
	"github.com/my-db-dev/RapidDB/pageio"
	"github.com/my-db-dev/RapidDB/wire"
)

// selfDivider breaks the construction cycle between Engine (which needs a
// divide.Divider before it exists) and Tree (which needs an Engine to be
// built already): Engine gets a stub that forwards to whatever Tree is
// bound into it once CreateFile/OpenFile finishes building one.
type selfDivider struct {
	tree atomic.Pointer[Tree]
}

func (d *selfDivider) Divide(fileID wire.FileID, pageID wire.PageID) error {
	t := d.tree.Load()
	if t == nil {
		return nil
	}
	return t.Divide(fileID, pageID)
}

// CreateFile creates a brand new on-disk index file and the Engine/Tree
// pair that owns it -- the common case of one index per file. It fails if
// a file already exists at path.
func CreateFile(path string, cfg engine.Config, schema keytype.Schema, indexType wire.IndexType) (*Tree, error) {
	pf, err := pageio.OpenFile(path, cfg.PageSize, true)
	if err != nil {
		return nil, err
	}
	_ = pf.Close()

	d := &selfDivider{}
	eng, err := engine.Open(path, cfg, d)
	if err != nil {
		return nil, err
	}
	tree, err := CreateIndex(eng, 1, schema, indexType)
	if err != nil {
		eng.Close()
		return nil, err
	}
	d.tree.Store(tree)
	tree.ownsEngine = true
	return tree, nil
}

// OpenFile resumes an existing on-disk index file.
func OpenFile(path string, cfg engine.Config, schema keytype.Schema) (*Tree, error) {
	d := &selfDivider{}
	eng, err := engine.Open(path, cfg, d)
	if err != nil {
		return nil, err
	}
	tree, err := OpenIndex(eng, 1, schema)
	if err != nil {
		eng.Close()
		return nil, err
	}
	d.tree.Store(tree)
	tree.ownsEngine = true
	return tree, nil
}

// CreateInMemory builds an ephemeral index backed entirely by memory, for
// tests and short-lived indexes.
func CreateInMemory(cfg engine.Config, schema keytype.Schema, indexType wire.IndexType) (*Tree, error) {
	d := &selfDivider{}
	eng := engine.OpenInMemory(cfg, d)
	tree, err := CreateIndex(eng, 1, schema, indexType)
	if err != nil {
		eng.Close()
		return nil, err
	}
	d.tree.Store(tree)
	tree.ownsEngine = true
	return tree, nil
}
