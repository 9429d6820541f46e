package storagepool

import (
	"github.com/my-db-dev/RapidDB/pageio"
	"github.com/my-db-dev/RapidDB/wire"
)

// FileBackend adapts a pageio.PageFile to the Backend interface.
type FileBackend struct {
	File *pageio.PageFile
}

func (b *FileBackend) ReadPage(id wire.PageID, buf []byte) error {
	return b.File.ReadPage(id, buf)
}

func (b *FileBackend) WritePage(id wire.PageID, buf []byte) error {
	return b.File.WritePage(id, buf)
}
