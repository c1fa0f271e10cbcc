package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/Jehaaaa/sam-extractor/internal/storage"
	"github.com/go-git/go-billy/v5"
)

// Unpacked is an archive materialised inside a workspace.
type Unpacked struct {
	Archive *models.FileInfo
	Root    billy.Filesystem
	Result  *Result
}

// Unpack spools r into ws and extracts it under the workspace's extraction root.
func Unpack(ctx context.Context, ws *storage.Workspace, name string, r io.Reader, allowed []Format) (*Unpacked, error) {
	info, err := ws.SpoolArchive(name, r)
	if err != nil {
		return nil, fmt.Errorf("spooling archive: %w", err)
	}

	src, _, err := ws.OpenArchive()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	root, err := ws.ExtractionRoot()
	if err != nil {
		return nil, err
	}

	res, err := Extract(ctx, src, info.Size, root, allowed)
	if err != nil {
		info.Status = "error"
		return nil, err
	}
	info.Status = "extracted"

	return &Unpacked{Archive: info, Root: root, Result: res}, nil
}
